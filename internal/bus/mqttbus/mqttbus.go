// Package mqttbus implements bus.Bus over github.com/eclipse/paho.mqtt.golang,
// the concrete MQTT client the core spec (§1) deliberately keeps out of
// scope. It is the one package in this module allowed to know that the
// transport is MQTT at all.
package mqttbus

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/net/proxy"

	"github.com/mistwave/unicornsh/internal/bus"
)

// ProxyTriple is the optional SOCKS4 proxy (host, port, userid) from spec
// §6's configuration inputs. golang.org/x/net/proxy only ships a SOCKS5
// dialer, so proxyDialer uses it in SOCKS5 mode against the configured host/port;
// this is a documented, deliberate protocol substitution (see DESIGN.md)
// rather than a faithful SOCKS4 implementation.
type ProxyTriple struct {
	Host   string
	Port   int
	UserID string
}

// Client adapts a paho client to bus.Bus.
type Client struct {
	opts   *mqtt.ClientOptions
	client mqtt.Client

	onMessage func(bus.Message)
	onAck     func(bus.SubscribeAck)
	onError   func(error)

	nextMid int
}

// New builds a Client configured to dial host:port, optionally through a
// SOCKS proxy.
func New(host string, port int, proxyCfg *ProxyTriple) *Client {
	c := &Client{}
	c.opts = mqtt.NewClientOptions()

	broker := fmt.Sprintf("tcp://%s:%d", host, port)
	c.opts.AddBroker(broker)

	if proxyCfg != nil {
		c.opts.SetDialer(proxyDialer(*proxyCfg))
	}

	c.opts.SetOnConnectHandler(func(mqtt.Client) {})
	c.opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if c.onError != nil {
			c.onError(err)
		}
	})

	return c
}

func proxyDialer(p ProxyTriple) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		auth := &proxy.Auth{User: p.UserID}
		dialer, err := proxy.SOCKS5(network, fmt.Sprintf("%s:%d", p.Host, p.Port), auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("build proxy dialer: %w", err)
		}
		return dialer.Dial(network, addr)
	}
}

// UseTLS configures the client to dial over TLS with the given config. The
// core never calls this itself (spec §1: transport security is out of
// scope), but it is exposed so a deployment's main() can opt in.
func (c *Client) UseTLS(cfg *tls.Config) {
	c.opts.SetTLSConfig(cfg)
}

func (c *Client) OnMessage(fn func(bus.Message))           { c.onMessage = fn }
func (c *Client) OnSubscribeAck(fn func(bus.SubscribeAck)) { c.onAck = fn }
func (c *Client) OnError(fn func(error))                   { c.onError = fn }

func (c *Client) Connect(ctx context.Context) error {
	c.client = mqtt.NewClient(c.opts)
	tok := c.client.Connect()

	done := make(chan struct{})
	go func() {
		tok.Wait()
		close(done)
	}()

	select {
	case <-done:
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(250)
	}
}

func (c *Client) Publish(topic string, payload []byte) error {
	tok := c.client.Publish(topic, 0, false, payload)
	tok.Wait()
	return tok.Error()
}

func (c *Client) Subscribe(topic string) (bus.SubscribeAck, error) {
	c.nextMid++
	mid := bus.SubscribeAck(c.nextMid)

	tok := c.client.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		if c.onMessage != nil {
			c.onMessage(bus.Message{Topic: m.Topic(), Payload: m.Payload()})
		}
	})

	go func() {
		tok.Wait()
		if c.onAck != nil {
			c.onAck(mid)
		}
	}()

	return mid, tok.Error()
}

func (c *Client) Unsubscribe(topic string) error {
	tok := c.client.Unsubscribe(topic)
	tok.Wait()
	return tok.Error()
}
