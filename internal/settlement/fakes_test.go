package settlement_test

import (
	"context"
	"sync"
	"time"

	"github.com/nimasrn/payment-gateway/internal/model"
)

// stepClock fires every After immediately and advances Now by the waited
// duration, so runs are instant but timestamps stay ordered.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waited = append(c.waited, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *stepClock) Waited() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waited...)
}

// gateClock blocks every After until Release is called.
type gateClock struct {
	gate chan struct{}
	once sync.Once
}

func newGateClock() *gateClock {
	return &gateClock{gate: make(chan struct{})}
}

func (c *gateClock) Now() time.Time { return time.Now().UTC() }

func (c *gateClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	go func() {
		<-c.gate
		ch <- time.Now()
	}()
	return ch
}

func (c *gateClock) Release() {
	c.once.Do(func() { close(c.gate) })
}

// seqRand replays floats in order and always picks index pick.
type seqRand struct {
	mu     sync.Mutex
	floats []float64
	i      int
	pick   int
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.floats[r.i%len(r.floats)]
	r.i++
	return f
}

func (r *seqRand) IntN(n int) int {
	return r.pick % n
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []*model.Transaction
}

func (p *recordingPublisher) PublishSettled(ctx context.Context, txn *model.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, txn)
	return nil
}

func (p *recordingPublisher) All() []*model.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Transaction(nil), p.got...)
}
