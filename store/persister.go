package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/persist"
)

const persistTimeout = 10 * time.Second

type encodeFn func() (string, error)

// persister writes the latest value of each key from a single goroutine.
// Values enqueued while a write is in flight are coalesced.
type persister struct {
	provider persist.Provider
	logger   *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string]encodeFn
	queued  uint64
	written uint64
	lastErr error
	closing bool
	stopped bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newPersister(provider persist.Provider, logger *zap.Logger) *persister {
	p := &persister{
		provider: provider,
		logger:   logger,
		pending:  map[string]encodeFn{},
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *persister) enqueue(key string, encode encodeFn) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		p.logger.Warn("dropping write after close", zap.String("key", key))
		return
	}
	p.pending[key] = encode
	p.queued++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.writePending()
		case <-p.stop:
			p.mu.Lock()
			p.closing = true
			p.mu.Unlock()
			p.writePending()
			p.mu.Lock()
			p.stopped = true
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}
	}
}

func (p *persister) writePending() {
	p.mu.Lock()
	batch := p.pending
	target := p.queued
	p.pending = map[string]encodeFn{}
	p.mu.Unlock()

	var lastErr error
	for key, encode := range batch {
		if err := p.write(key, encode); err != nil {
			p.logger.Error("persisting state", zap.String("key", key), zap.Error(err))
			lastErr = err
		}
	}

	p.mu.Lock()
	p.written = target
	p.lastErr = lastErr
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *persister) write(key string, encode encodeFn) error {
	value, err := encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.provider.Set(ctx, key, value)
}

func (p *persister) flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := p.queued
	for p.written < target && !p.stopped {
		p.cond.Wait()
	}
	return p.lastErr
}

func (p *persister) close() error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
