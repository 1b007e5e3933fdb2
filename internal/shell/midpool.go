package shell

import (
	"context"
	"sync"

	"github.com/mistwave/unicornsh/internal/bus"
	"github.com/mistwave/unicornsh/internal/shellerr"
)

// midPool is the message-id pool from spec §4.6/§5: a set of outstanding
// subscribe ids awaiting acknowledgement from the bus, guarded by a mutex and
// signaled by a condition so a dispatching goroutine can block until every id
// it issued has arrived.
type midPool struct {
	mu   sync.Mutex
	cond *sync.Cond
	seen map[bus.SubscribeAck]bool
}

func newMidPool() *midPool {
	p := &midPool{seen: map[bus.SubscribeAck]bool{}}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// add records mid as acknowledged and wakes any waiter. Called from the bus
// network thread's OnSubscribeAck callback.
func (p *midPool) add(mid bus.SubscribeAck) {
	p.mu.Lock()
	p.seen[mid] = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// waitAll blocks until every id in mids has been observed via add, or until
// deadlineCh is closed, whichever comes first. On success, every observed id
// is removed from the pool (spec §8 property 5: no outstanding ids issued by
// this call remain once it returns). On timeout it returns a BusError and
// leaves the pool as-is so a late ack is simply ignored when it arrives.
func (p *midPool) waitAll(ctx context.Context, mids []bus.SubscribeAck) error {
	if len(mids) == 0 {
		return nil
	}

	// a cond.Wait can't select on a context directly, so a watcher goroutine
	// broadcasts once ctx is done, guaranteeing the waiter below wakes either
	// way instead of blocking past the deadline.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-watcherDone:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.allSeenLocked(mids) {
		if ctx.Err() != nil {
			return shellerr.BusError(ctx.Err())
		}
		p.cond.Wait()
	}
	for _, mid := range mids {
		delete(p.seen, mid)
	}
	return nil
}

func (p *midPool) allSeenLocked(mids []bus.SubscribeAck) bool {
	for _, mid := range mids {
		if !p.seen[mid] {
			return false
		}
	}
	return true
}
