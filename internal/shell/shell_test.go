package shell

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistwave/unicornsh/internal/bus"
	"github.com/mistwave/unicornsh/internal/idl"
)

// fakeBus is a minimal in-memory stand-in for a real bus.Bus, sufficient to
// drive the event loop's dispatch/response-binding logic under test without
// a network connection.
type fakeBus struct {
	mu          sync.Mutex
	published   []bus.Message
	subscribed  []string
	onMessage   func(bus.Message)
	onSubAck    func(bus.SubscribeAck)
	nextMid     bus.SubscribeAck
	autoAck     bool
	publishErrs map[string]error
}

func newFakeBus() *fakeBus { return &fakeBus{autoAck: true} }

func (f *fakeBus) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.publishErrs[topic]; ok {
		return err
	}
	f.published = append(f.published, bus.Message{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(topic string) (bus.SubscribeAck, error) {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, topic)
	f.nextMid++
	mid := f.nextMid
	ack := f.onSubAck
	auto := f.autoAck
	f.mu.Unlock()

	if auto && ack != nil {
		go ack(mid)
	}
	return mid, nil
}

func (f *fakeBus) Unsubscribe(topic string) error { return nil }

func (f *fakeBus) OnMessage(h func(bus.Message)) { f.onMessage = h }

func (f *fakeBus) OnSubscribeAck(h func(bus.SubscribeAck)) { f.onSubAck = h }

func (f *fakeBus) OnError(func(error)) {}

func (f *fakeBus) Connect(ctx context.Context) error { return nil }

func (f *fakeBus) Disconnect() {}

func (f *fakeBus) deliver(topic string, payload []byte) {
	f.mu.Lock()
	h := f.onMessage
	f.mu.Unlock()
	if h != nil {
		h(bus.Message{Topic: topic, Payload: payload})
	}
}

type fakeRenderer struct {
	mu               sync.Mutex
	out, errs, ret []string
}

func (r *fakeRenderer) RenderOut(line string)    { r.mu.Lock(); r.out = append(r.out, line); r.mu.Unlock() }
func (r *fakeRenderer) RenderErr(line string)    { r.mu.Lock(); r.errs = append(r.errs, line); r.mu.Unlock() }
func (r *fakeRenderer) RenderResult(line string) { r.mu.Lock(); r.ret = append(r.ret, line); r.mu.Unlock() }

func Test_Shell_discoveryMessageRegistersTopicForCompletion(t *testing.T) {
	b := newFakeBus()
	sh := New(Options{Bus: b, AckTimeout: time.Second})
	sh.AttachBus()

	ctx, cancel := context.WithCancel(context.Background())
	go sh.Run(ctx)
	defer cancel()

	b.deliver(DiscoveryTopicPrefix+"nav/move", []byte(`{"completion": {"type": "empty"}}`))

	require.Eventually(t, func() bool {
		for _, topic := range sh.Registry().Topics() {
			if topic == "nav/move" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func Test_Shell_nonIDLMessageOnDiscoveryPrefixIsIgnored(t *testing.T) {
	b := newFakeBus()
	sh := New(Options{Bus: b, AckTimeout: time.Second})
	sh.AttachBus()

	ctx, cancel := context.WithCancel(context.Background())
	go sh.Run(ctx)
	defer cancel()

	b.deliver(DiscoveryTopicPrefix+"nothing", []byte(`{"unrelated": true}`))
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sh.Registry().Topics())
}

func Test_Shell_dispatchLine_publishesAndBindsResponseTopics(t *testing.T) {
	b := newFakeBus()
	renderer := &fakeRenderer{}
	var dispatched []string
	sh := New(Options{
		Bus:        b,
		Renderer:   renderer,
		AckTimeout: time.Second,
		OnDispatch: func(topic, payload, suffix string) { dispatched = append(dispatched, topic) },
	})
	sh.AttachBus()
	sh.Registry().Upsert(mustIDLForShellTest(t, "nav/move", `{
		"completion": {"type": "string", "options": ["north"]},
		"result": "/resp/ret"
	}`))

	ctx, cancel := context.WithCancel(context.Background())
	go sh.Run(ctx)
	defer cancel()

	sh.PushInput("nav move north")

	require.Eventually(t, func() bool {
		return len(b.published) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "nav/move", b.published[0].Topic)
	assert.Equal(t, "north", string(b.published[0].Payload))
	assert.Contains(t, dispatched, "nav/move")

	stdout, _, result := sh.Bindings()
	assert.Nil(t, stdout)
	require.NotNil(t, result)
	assert.Equal(t, "/resp/ret", *result)

	b.deliver("/resp/ret", []byte("done\n"))
	require.Eventually(t, func() bool {
		renderer.mu.Lock()
		defer renderer.mu.Unlock()
		return len(renderer.ret) == 1
	}, time.Second, 10*time.Millisecond)

	_, _, result = sh.Bindings()
	assert.Nil(t, result)
}

func Test_Shell_dispatchLine_unroutableInputIsANoOp(t *testing.T) {
	b := newFakeBus()
	sh := New(Options{Bus: b, AckTimeout: time.Second})
	sh.AttachBus()

	ctx, cancel := context.WithCancel(context.Background())
	go sh.Run(ctx)
	defer cancel()

	sh.PushInput("bogus command")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, b.published)
}

func Test_Shell_PushTerminate_stopsTheRunLoop(t *testing.T) {
	b := newFakeBus()
	sh := New(Options{Bus: b, AckTimeout: time.Second})
	sh.AttachBus()

	done := make(chan struct{})
	go func() {
		sh.Run(context.Background())
		close(done)
	}()

	sh.PushTerminate()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after PushTerminate")
	}
}

func mustIDLForShellTest(t *testing.T, topic, payload string) idl.IDL {
	t.Helper()
	l, err := idl.FromJSON(topic, []byte(payload), true, nil)
	require.NoError(t, err)
	return l
}
