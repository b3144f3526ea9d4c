// Package persist provides durable, JSON-encoded key/value cells with a ready gate.
package persist

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/domain/failure"
)

// Backend abstracts durable blob storage addressed by key.
type Backend interface {
	// Get returns the stored blob. A missing key is reported with ok=false.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
}

// Decoder validates and converts a decoded value. Returning false treats the
// stored blob as absent.
type Decoder[T any] func(data []byte) (T, bool)

// Options configures a Cell.
type Options[T any] struct {
	Logger *zap.Logger
	Decode Decoder[T]
}

// Cell owns exactly one durable key. The in-memory value is readable and
// writable at once; durable writes start only after the initial load resolved.
type Cell[T any] struct {
	key     string
	backend Backend
	decode  Decoder[T]
	log     *zap.Logger

	mu      sync.Mutex
	value   T
	ready   bool
	pending func(T) T // mutations applied before ready, replayed over the loaded value
	version uint64    // bumped on each mutation after ready
	written uint64

	readyCh chan struct{}
	dirty   chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	closeMu sync.Once

	writeMu sync.Mutex
}

// Open creates a cell holding def and starts loading key in the background.
func Open[T any](backend Backend, key string, def T, opts Options[T]) *Cell[T] {
	c := new(Cell[T]{
		key:     key,
		backend: backend,
		decode:  opts.Decode,
		log:     opts.Logger,
		value:   def,
		readyCh: make(chan struct{}),
		dirty:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	})
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.decode == nil {
		c.decode = decodeJSON[T]
	}
	c.log = c.log.With(zap.String("key", key))

	go c.run()
	return c
}

// Key returns the durable key owned by the cell.
func (c *Cell[T]) Key() string {
	return c.key
}

// Ready reports whether the initial load completed.
func (c *Cell[T]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Wait blocks until the cell is ready or ctx is done.
func (c *Cell[T]) Wait(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the current in-memory value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update applies fn to the current value and returns the result. Before the
// cell is ready, fn is also queued so it can be replayed over the loaded value.
// fn must not retain or mutate its argument in place.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	c.value = fn(c.value)
	next := c.value
	if !c.ready {
		if prev := c.pending; prev != nil {
			c.pending = func(v T) T { return fn(prev(v)) }
		} else {
			c.pending = fn
		}
		c.mu.Unlock()
		return next
	}
	c.version++
	c.mu.Unlock()

	c.markDirty()
	return next
}

// Flush writes the latest value if it has not been written yet. It waits for
// the initial load first.
func (c *Cell[T]) Flush(ctx context.Context) error {
	if err := c.Wait(ctx); err != nil {
		return err
	}
	return c.write(ctx)
}

// Close flushes the latest value and stops the background writer.
func (c *Cell[T]) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.closeMu.Do(func() { close(c.stop) })
	select {
	case <-c.stopped:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (c *Cell[T]) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *Cell[T]) run() {
	defer close(c.stopped)
	c.load()

	for {
		select {
		case <-c.dirty:
			if err := c.write(context.Background()); err != nil {
				c.log.Warn("durable write failed", zap.Error(err))
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Cell[T]) load() {
	data, ok, err := c.backend.Get(context.Background(), c.key)
	if err != nil {
		c.log.Warn("initial load failed, using default", zap.Error(failure.NewStorage("load", err)))
		ok = false
	}

	c.mu.Lock()
	if ok {
		if loaded, valid := c.decode(data); valid {
			c.value = loaded
			if c.pending != nil {
				c.value = c.pending(c.value)
			}
		} else {
			c.log.Info("stored value unreadable, using default")
		}
	}
	hadPending := c.pending != nil
	c.pending = nil
	c.ready = true
	if hadPending {
		c.version++
	}
	c.mu.Unlock()
	close(c.readyCh)

	if hadPending {
		c.markDirty()
	}
}

func (c *Cell[T]) write(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.version == c.written {
		c.mu.Unlock()
		return nil
	}
	version := c.version
	data, err := json.Marshal(c.value)
	c.mu.Unlock()
	if err != nil {
		return failure.NewStorage("encode", err)
	}

	if err := c.backend.Put(ctx, c.key, data); err != nil {
		return failure.NewStorage("write", err)
	}

	c.mu.Lock()
	if version > c.written {
		c.written = version
	}
	c.mu.Unlock()
	return nil
}

func decodeJSON[T any](data []byte) (T, bool) {
	var v T
	if len(data) == 0 {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}
