package navigation

import (
	"context"
	"sync"
)

// PositionFeed is a PositionSource fed by Push. It has at most one subscriber:
// a new subscription closes the previous one. Push never blocks; samples are
// dropped while the subscriber's buffer is full.
type PositionFeed struct {
	mu     sync.Mutex
	buffer int
	ch     chan Position
	stop   context.CancelFunc
}

func NewPositionFeed(buffer int) *PositionFeed {
	return &PositionFeed{buffer: buffer}
}

func (f *PositionFeed) Subscribe(ctx context.Context) (<-chan Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closeLocked()
	ch := make(chan Position, f.buffer)
	ctx, cancel := context.WithCancel(ctx)
	f.ch = ch
	f.stop = cancel

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.ch == ch {
			f.closeLocked()
		}
	}()
	return ch, nil
}

// Push reports whether the sample was delivered to a subscriber.
func (f *PositionFeed) Push(pos Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch == nil {
		return false
	}
	select {
	case f.ch <- pos:
		return true
	default:
		return false
	}
}

func (f *PositionFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *PositionFeed) closeLocked() {
	if f.ch == nil {
		return
	}
	f.stop()
	close(f.ch)
	f.ch = nil
	f.stop = nil
}
