package authsession

import "sync"

// Listener observes state transitions. Listeners run one at a time, in
// subscription order, and must not block. A listener may run on the
// goroutine of whichever call is draining the notification queue, not on
// the goroutine that caused the transition.
type Listener func(state AuthState)

type subscription struct {
	id    uint64
	fn    Listener
	since uint64
}

type delivery struct {
	seq    uint64
	state  AuthState
	target uint64
}

// registry is an ordered list of listeners fed from a delivery queue.
// Publishing only enqueues; whichever caller finds the queue idle drains
// it, so listeners may call back into the Manager without deadlocking and
// every listener sees snapshots in commit order.
type registry struct {
	mu       sync.Mutex
	nextID   uint64
	seq      uint64
	subs     []subscription
	queue    []delivery
	draining bool
	logger   Logger
}

func newRegistry(logger Logger) *registry {
	return &registry{logger: logger}
}

// subscribe appends fn and queues its initial snapshot. The caller must
// serialize subscribe and publish with state mutations.
func (r *registry) subscribe(fn Listener, current AuthState) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscription{id: id, fn: fn, since: r.seq})
	r.queue = append(r.queue, delivery{seq: r.seq, state: current, target: id})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *registry) publish(state AuthState) {
	r.mu.Lock()
	r.seq++
	r.queue = append(r.queue, delivery{seq: r.seq, state: state})
	r.mu.Unlock()
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// drain delivers queued snapshots until the queue is empty. It returns
// immediately when another call is already draining.
func (r *registry) drain() {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true

	for len(r.queue) > 0 {
		d := r.queue[0]
		r.queue = r.queue[1:]
		subs := make([]subscription, len(r.subs))
		copy(subs, r.subs)
		r.mu.Unlock()

		for _, s := range subs {
			if d.target != 0 && s.id != d.target {
				continue
			}
			if d.target == 0 && d.seq <= s.since {
				continue
			}
			r.invoke(s, d.state.Clone())
		}

		r.mu.Lock()
	}

	r.queue = nil
	r.draining = false
	r.mu.Unlock()
}

func (r *registry) invoke(s subscription, state AuthState) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener %d panicked: %v", s.id, rec)
		}
	}()
	s.fn(state)
}
