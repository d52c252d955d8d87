// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package process

import (
	"sync"

	"github.com/quarrylabs/quarry/core"
)

// subscriberBuffer is the per-subscriber channel capacity. A slow
// subscriber loses the oldest buffered events, never the newest; every
// event carries the full process snapshot, so latest-wins is lossless
// for state observation.
const subscriberBuffer = 16

type subscriber struct {
	id string // empty subscribes to all processes
	ch chan core.ProcessEvent
}

type eventBus struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[*subscriber]struct{})}
}

func (b *eventBus) subscribe(id string) *subscriber {
	sub := &subscriber{id: id, ch: make(chan core.ProcessEvent, subscriberBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// subscribeSeeded registers the subscriber with its channel already
// seeded by the snapshot read inside the bus lock. Publishers hold the
// same lock, so no update can land between the snapshot and the live
// stream.
func (b *eventBus) subscribeSeeded(id string, snapshot func() (core.ProcessEvent, error)) (*subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev, err := snapshot()
	if err != nil {
		return nil, err
	}
	sub := &subscriber{id: id, ch: make(chan core.ProcessEvent, subscriberBuffer)}
	deliver(sub.ch, ev)
	if b.closed {
		close(sub.ch)
		return sub, nil
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

func (b *eventBus) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// publish delivers the event to every matching subscriber without ever
// blocking the tracker. A full channel drops its oldest event to make
// room.
func (b *eventBus) publish(ev core.ProcessEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.id != "" && sub.id != ev.ID {
			continue
		}
		deliver(sub.ch, ev)
	}
}

func deliver(ch chan core.ProcessEvent, ev core.ProcessEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	// Coalesce: evict the oldest buffered event and retry once.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*subscriber]struct{})
}

// Subscribe streams events for one process. The current snapshot is
// delivered first, then live updates. The returned cancel func releases
// the subscription; the channel is closed afterwards.
func (t *Tracker) Subscribe(id string) (<-chan core.ProcessEvent, func(), error) {
	sub, err := t.bus.subscribeSeeded(id, func() (core.ProcessEvent, error) {
		snapshot, err := t.Get(id)
		if err != nil {
			return core.ProcessEvent{}, err
		}
		return core.EventFromProcess(snapshot), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sub.ch, func() { t.bus.unsubscribe(sub) }, nil
}

// SubscribeAll streams events for every tracked process, starting with a
// snapshot of each live entry.
func (t *Tracker) SubscribeAll() (<-chan core.ProcessEvent, func()) {
	sub := t.bus.subscribe("")
	for _, proc := range t.List(ListFilter{}) {
		deliver(sub.ch, core.EventFromProcess(proc))
	}
	return sub.ch, func() { t.bus.unsubscribe(sub) }
}
