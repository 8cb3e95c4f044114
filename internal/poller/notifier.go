package poller

import (
	"context"
	"sync"
	"time"
)

// ConversationKey identifies one side's view of a conversation.
type ConversationKey struct {
	UserID      string
	OtherUserID string
}

// Notifier delivers "this conversation may have changed" signals. A live
// transport can implement it without changing subscribers.
type Notifier interface {
	Subscribe(key ConversationKey, fn func(ctx context.Context)) (unsubscribe func())
}

// EventNotifier fires subscribers when the presentation layer reports an
// event, immediately or after a delay.
type EventNotifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[ConversationKey]map[uint64]func(context.Context)
	timers map[ConversationKey]map[*time.Timer]struct{}
}

func NewEventNotifier() *EventNotifier {
	return &EventNotifier{
		subs:   make(map[ConversationKey]map[uint64]func(context.Context)),
		timers: make(map[ConversationKey]map[*time.Timer]struct{}),
	}
}

func (n *EventNotifier) Subscribe(key ConversationKey, fn func(ctx context.Context)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.subs[key] == nil {
		n.subs[key] = make(map[uint64]func(context.Context))
	}
	n.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { n.unsubscribe(key, id) })
	}
}

func (n *EventNotifier) unsubscribe(key ConversationKey, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.subs[key], id)
	if len(n.subs[key]) > 0 {
		return
	}
	delete(n.subs, key)
	for t := range n.timers[key] {
		t.Stop()
	}
	delete(n.timers, key)
}

// Notify runs the subscribers of key synchronously and returns how many ran.
func (n *EventNotifier) Notify(ctx context.Context, key ConversationKey) int {
	n.mu.Lock()
	fns := make([]func(context.Context), 0, len(n.subs[key]))
	for _, fn := range n.subs[key] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
	return len(fns)
}

// NotifyAfter schedules a Notify for key. Pending timers are stopped when the
// last subscriber of key goes away.
func (n *EventNotifier) NotifyAfter(key ConversationKey, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.subs[key]) == 0 {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		n.mu.Lock()
		delete(n.timers[key], t)
		n.mu.Unlock()
		n.Notify(context.Background(), key)
	})
	if n.timers[key] == nil {
		n.timers[key] = make(map[*time.Timer]struct{})
	}
	n.timers[key][t] = struct{}{}
}

// Pending reports the number of scheduled notifications for key.
func (n *EventNotifier) Pending(key ConversationKey) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers[key])
}
