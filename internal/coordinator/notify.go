package coordinator

import "sync"

// subscriberBuffer bounds how many undelivered versions a subscriber may
// lag behind before it starts missing them.
const subscriberBuffer = 100

// Notifier fans a monotonically increasing state version out to
// subscribers. Delivery is best effort: sends never block, so a slow
// subscriber misses versions instead of stalling the coordinator.
type Notifier struct {
	mu      sync.Mutex
	version uint64
	nextID  int
	subs    map[int]chan uint64
}

// NewNotifier creates an empty notifier at version zero.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan uint64)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// func that drops the registration.
func (n *Notifier) Subscribe() (<-chan uint64, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	ch := make(chan uint64, subscriberBuffer)
	n.subs[id] = ch
	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
	return ch, cancel
}

// Notify bumps the version and offers it to every subscriber.
func (n *Notifier) Notify() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.version++
	for _, ch := range n.subs {
		select {
		case ch <- n.version:
		default:
		}
	}
	return n.version
}

// Version returns the most recently published version.
func (n *Notifier) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}
