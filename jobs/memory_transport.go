package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sdcpainting/referral_site/models"
)

// MemoryTransport keeps one FIFO per job name in process memory and rotates
// between names so one busy queue cannot starve another. Popped envelopes
// stay in flight until acked or released. Nothing survives a restart; use
// StoreTransport when the worker is a separate process.
type MemoryTransport struct {
	mu       sync.Mutex
	queues   map[string][]models.JobEnvelope
	names    []string
	next     int
	inflight map[string]models.JobEnvelope
	signal   chan struct{}
	poll     time.Duration
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		queues:   make(map[string][]models.JobEnvelope),
		inflight: make(map[string]models.JobEnvelope),
		signal:   make(chan struct{}, 1),
		poll:     250 * time.Millisecond,
	}
}

func (t *MemoryTransport) Push(ctx context.Context, env models.JobEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	if _, ok := t.queues[env.JobName]; !ok {
		t.names = append(t.names, env.JobName)
	}
	t.queues[env.JobName] = append(t.queues[env.JobName], env)
	t.mu.Unlock()

	select {
	case t.signal <- struct{}{}:
	default:
	}
	return nil
}

func (t *MemoryTransport) Pop(ctx context.Context) (*models.JobEnvelope, error) {
	for {
		if env, ok := t.take(); ok {
			return env, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.signal:
		case <-time.After(t.poll):
		}
	}
}

func (t *MemoryTransport) take() (*models.JobEnvelope, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < len(t.names); i++ {
		name := t.names[(t.next+i)%len(t.names)]
		queue := t.queues[name]
		if len(queue) == 0 {
			continue
		}
		env := queue[0]
		t.queues[name] = queue[1:]
		t.next = (t.next + i + 1) % len(t.names)

		env.Attempts++
		t.inflight[env.ID] = env
		return &env, true
	}
	return nil, false
}

func (t *MemoryTransport) Ack(_ context.Context, id string) error {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
	return nil
}

// Release puts an in-flight envelope back at the head of its queue.
func (t *MemoryTransport) Release(_ context.Context, id string) error {
	t.mu.Lock()
	env, ok := t.inflight[id]
	if ok {
		delete(t.inflight, id)
		t.queues[env.JobName] = append([]models.JobEnvelope{env}, t.queues[env.JobName]...)
	}
	t.mu.Unlock()

	if ok {
		select {
		case t.signal <- struct{}{}:
		default:
		}
	}
	return nil
}

func (t *MemoryTransport) Pending(_ context.Context) ([]models.JobEnvelope, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.JobEnvelope
	for _, env := range t.inflight {
		out = append(out, env)
	}
	for _, name := range t.names {
		out = append(out, t.queues[name]...)
	}
	return out, nil
}

// Len reports queued (not in-flight) envelopes.
func (t *MemoryTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, q := range t.queues {
		n += len(q)
	}
	return n
}
