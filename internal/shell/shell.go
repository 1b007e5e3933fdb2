// Package shell implements the pub/sub event loop: it consumes bus messages
// (IDL announcements, response streams), drives the completer via the
// registry it owns, publishes commands through the Command Decoder, and
// correlates responses (spec §4.6, §4.7).
package shell

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mistwave/unicornsh/internal/bus"
	"github.com/mistwave/unicornsh/internal/cache"
	"github.com/mistwave/unicornsh/internal/decode"
	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/idl"
	"github.com/mistwave/unicornsh/internal/registry"
	"github.com/mistwave/unicornsh/internal/shellerr"
)

// DiscoveryTopicPrefix is the bus topic prefix IDL announcements are
// published under (spec §6): a message on DiscoveryTopicPrefix+"<topic>" is
// interpreted as an IDL announcement for <topic> iff its JSON payload
// contains a "completion" field.
const DiscoveryTopicPrefix = "/unicorn/idl/"

// Renderer paints response-channel traffic to wherever the frontend lives
// (spec §4.7, §6). Implementations decorate each line with the
// [out]/[err]/[ret] tags; see internal/shellio.
type Renderer interface {
	RenderOut(line string)
	RenderErr(line string)
	RenderResult(line string)
}

// Options configures a Shell.
type Options struct {
	Bus               bus.Bus
	Renderer          Renderer
	Logger            grammar.Logger
	CachePath         string // empty disables persistence
	AckTimeout        time.Duration
	OnRegistryChanged func(*registry.Registry)            // called after each IDL_CONFIG rebuild and once after cache replay, for introspection callers
	OnDispatch        func(topic, payload, suffix string) // called after every successful publish, for audit logging
}

// Shell is the process-wide state described in spec §5 design note
// "Global state": the composite grammar, registry, event queue, mid-pool,
// and response-topic binding, threaded explicitly as fields of one value
// rather than package globals.
type Shell struct {
	bus      bus.Bus
	renderer Renderer
	log      grammar.Logger

	reg  *registry.Registry
	mids *midPool
	q    *eventQueue

	cachePath  string
	ackTimeout time.Duration
	onRegistry func(*registry.Registry)
	onDispatch func(topic, payload, suffix string)

	bindMu sync.Mutex
	stdout *string
	stderr *string
	result *string
}

// New builds a Shell. If opts.CachePath is non-empty and exists, the known
// IDL set is loaded from it and an initial composite rebuild is performed
// without re-persisting (spec §4.4 "Cache" / §4.8 "On load").
func New(opts Options) *Shell {
	log := opts.Logger
	ackTimeout := opts.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}

	sh := &Shell{
		bus:        opts.Bus,
		renderer:   opts.Renderer,
		log:        log,
		reg:        registry.New(log),
		mids:       newMidPool(),
		q:          newEventQueue(),
		cachePath:  opts.CachePath,
		ackTimeout: ackTimeout,
		onRegistry: opts.OnRegistryChanged,
		onDispatch: opts.OnDispatch,
	}

	if sh.cachePath != "" {
		if entries, err := cache.Load(sh.cachePath, log); err == nil {
			for _, l := range entries {
				sh.reg.Upsert(l)
			}
			sh.notifyRegistry()
		}
	}

	return sh
}

// Registry exposes the live registry for introspection callers (spec's
// ambient debug surface; not part of the core's own operation).
func (sh *Shell) Registry() *registry.Registry { return sh.reg }

// SetRenderer assigns the renderer response-channel traffic is painted to.
// Separated from Options so callers whose renderer depends on state built
// from the Shell itself (e.g. a readline instance wrapping its completer)
// can wire it in after construction, before AttachBus/Run.
func (sh *Shell) SetRenderer(r Renderer) { sh.renderer = r }

// Bindings returns a snapshot of the currently bound response topics (nil
// for any channel the most recent dispatch didn't request), for
// introspection callers.
func (sh *Shell) Bindings() (stdout, stderr, result *string) {
	sh.bindMu.Lock()
	defer sh.bindMu.Unlock()
	return sh.stdout, sh.stderr, sh.result
}

// PushInput enqueues an INPUT event, as the input thread does on every line
// read from the terminal (spec §4.7, §5 concurrency domain 3).
func (sh *Shell) PushInput(line string) {
	sh.q.push(Input, line)
}

// PushTerminate enqueues a TERMINATE event, as EOF on stdin does.
func (sh *Shell) PushTerminate() {
	sh.q.push(Terminate, nil)
}

// Completer runs the composite grammar against buffer/loc and returns sorted
// completion candidates (spec §4.2's stated ordering: ascending,
// case-sensitive, over deduplicated candidates).
func (sh *Shell) Completer(buffer string, loc int) []string {
	return grammar.Complete(sh.reg.Composite, buffer, loc)
}

// Decode runs the Command Decoder against the live prefix trie (spec §4.5).
func (sh *Shell) Decode(line string) (decode.Decoded, bool) {
	return decode.Decode(sh.reg.Trie, line)
}

// AttachBus wires the Shell's bus callbacks, connects the bus, and
// subscribes to every topic under DiscoveryTopicPrefix: IDL discovery
// messages become IDL_CONFIG events, response-channel traffic on the
// currently bound stdout/stderr/result topics is painted directly (spec
// §4.7), and subscribe acknowledgements feed the mid-pool. A connect or
// subscribe failure is logged as a BusError.
func (sh *Shell) AttachBus() {
	sh.bus.OnSubscribeAck(sh.mids.add)
	sh.bus.OnMessage(sh.onMessage)
	if err := sh.bus.Connect(context.Background()); err != nil {
		sh.logf("%s", shellerr.BusError(err).Error())
		return
	}
	if _, err := sh.bus.Subscribe(DiscoveryTopicPrefix + "#"); err != nil {
		sh.logf("%s", shellerr.BusError(err).Error())
	}
}

func (sh *Shell) onMessage(m bus.Message) {
	if strings.HasPrefix(m.Topic, DiscoveryTopicPrefix) {
		sh.handleDiscovery(strings.TrimPrefix(m.Topic, DiscoveryTopicPrefix), m.Payload)
		return
	}

	sh.bindMu.Lock()
	stdout, stderr, result := sh.stdout, sh.stderr, sh.result
	sh.bindMu.Unlock()

	switch {
	case stdout != nil && m.Topic == *stdout:
		renderLines(sh.renderer.RenderOut, m.Payload)
	case stderr != nil && m.Topic == *stderr:
		renderLines(sh.renderer.RenderErr, m.Payload)
	case result != nil && m.Topic == *result:
		renderLines(sh.renderer.RenderResult, m.Payload)
		sh.clearResponseTopics()
	}
}

func renderLines(render func(string), payload []byte) {
	text := strings.TrimRight(string(payload), "\r\n")
	if text == "" {
		return
	}
	for _, ln := range strings.Split(text, "\n") {
		render(strings.TrimRight(ln, "\r"))
	}
}

func (sh *Shell) handleDiscovery(topic string, payload []byte) {
	var probe struct {
		Completion json.RawMessage `json:"completion"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		sh.logf("%s", shellerr.MalformedIDL(topic, err).Error())
		return
	}
	if probe.Completion == nil {
		// not an IDL announcement at all: payload lacks "completion" (spec §6).
		return
	}

	l, err := idl.FromJSON(topic, payload, true, sh.log)
	if err != nil {
		sh.logf("%s", shellerr.MalformedIDL(topic, err).Error())
		return
	}

	sh.q.push(IDLConfig, l)
}

func (sh *Shell) logf(format string, args ...interface{}) {
	if sh.log != nil {
		sh.log.Logf(format, args...)
	}
}

// Run drives the event loop until a TERMINATE event is processed or ctx is
// done. It traps SIGINT to a no-op for the duration of the run, so Ctrl-C
// aborts only whatever the frontend's current line-edit is doing (spec
// §4.7, §5).
func (sh *Shell) Run(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			// no-op: swallow Ctrl-C at the process level.
		}
	}()

	evCh := make(chan event)
	go func() {
		for {
			evCh <- sh.q.pop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-evCh:
			if sh.handleEvent(ev) {
				return
			}
		}
	}
}

// handleEvent processes one event and reports whether the loop should stop.
func (sh *Shell) handleEvent(ev event) bool {
	switch ev.kind {
	case Terminate:
		return true
	case Input:
		sh.dispatchLine(ev.payload.(string))
	case IDLConfig:
		sh.reg.Upsert(ev.payload.(idl.IDL))
		sh.notifyRegistry()
		sh.persistCache()
	case IDLStdout, IDLStderr:
		// unreachable in this implementation; see Kind's doc comment.
	}
	return false
}

func (sh *Shell) dispatchLine(line string) {
	d, ok := sh.Decode(line)
	if !ok {
		return
	}

	if err := sh.setResponseTopics(d.Route.Stdout, d.Route.Stderr, d.Route.Result, d.Suffix); err != nil {
		sh.logf("%s", err.Error())
		return
	}

	if err := sh.bus.Publish(d.Topic, []byte(d.Payload)); err != nil {
		sh.logf("%s", shellerr.BusError(err).Error())
		return
	}

	if sh.onDispatch != nil {
		sh.onDispatch(d.Topic, d.Payload, d.Suffix)
	}
}

// setResponseTopics implements spec §4.6: unsubscribe from any previously
// bound topics, bind the new ones, subscribe to them, and block until every
// subscription issued here is acknowledged (bounded by ackTimeout per the
// Design Note in spec §9, rather than stalling forever).
func (sh *Shell) setResponseTopics(stdout, stderr, result *string, suffix string) error {
	sh.bindMu.Lock()
	defer sh.bindMu.Unlock()

	if sh.stdout != nil {
		sh.bus.Unsubscribe(*sh.stdout)
	}
	if sh.stderr != nil {
		sh.bus.Unsubscribe(*sh.stderr)
	}
	if sh.result != nil {
		sh.bus.Unsubscribe(*sh.result)
	}

	sh.stdout = suffixed(stdout, suffix)
	sh.stderr = suffixed(stderr, suffix)
	sh.result = suffixed(result, suffix)

	var mids []bus.SubscribeAck
	for _, t := range []*string{sh.stdout, sh.stderr, sh.result} {
		if t == nil {
			continue
		}
		mid, err := sh.bus.Subscribe(*t)
		if err != nil {
			return shellerr.BusError(err)
		}
		mids = append(mids, mid)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sh.ackTimeout)
	defer cancel()
	return sh.mids.waitAll(ctx, mids)
}

func suffixed(topic *string, suffix string) *string {
	if topic == nil {
		return nil
	}
	v := *topic + suffix
	return &v
}

func (sh *Shell) clearResponseTopics() {
	sh.bindMu.Lock()
	sh.stdout, sh.stderr, sh.result = nil, nil, nil
	sh.bindMu.Unlock()
}

func (sh *Shell) notifyRegistry() {
	if sh.onRegistry != nil {
		sh.onRegistry(sh.reg)
	}
}

func (sh *Shell) persistCache() {
	if sh.cachePath == "" {
		return
	}
	if err := cache.Save(sh.cachePath, sh.reg.All()); err != nil {
		sh.logf("failed to persist idl cache: %s", err.Error())
	}
}
