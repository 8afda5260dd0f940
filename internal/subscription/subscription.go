/**
 * Copyright (c) 2019, The Artemis Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

// Package subscription implements §4.6's Subscription Registry: a DependencyKey -> listener fan-in
// index, and the fan-out dispatch that notifies every listener whose registered dependencies
// intersect a write's touched set.
//
// Dispatch is handed to a concurrent.Executor (the worker-pool executor artemis built for
// dataloader batching) configured with exactly one worker, so deliveries to different
// subscriptions for the same write are serialized in submission order — deterministic fan-out
// without making the writer (normalize caller) block on slow listeners.
package subscription

import (
	"sync"

	"github.com/riftgraph/ncache/concurrent"
	"github.com/riftgraph/ncache/concurrent/future"
)

// Listener receives the set of DependencyKeys that changed in the write that triggered it. It is
// invoked on the dispatcher's worker goroutine, never on the caller of Notify. A Listener may
// return a future.Future representing work it kicked off in response (e.g. a re-read it wants to
// chain more work onto); Notify/NotifyAll poll it exactly once with a no-op Waker and discard the
// result, the fire-and-forget semantics §4.6/§9 call for. A nil return means there is nothing to
// poll.
type Listener func(touched []string) future.Future

// ID identifies a registered subscription so it can later be updated or cancelled.
type ID uint64

// NewDispatcher builds the single-worker executor Notify uses to deliver callbacks
// asynchronously and in submission order.
func NewDispatcher() (concurrent.Executor, error) {
	return concurrent.NewWorkerPoolExecutor(concurrent.WorkerPoolExecutorConfig{
		MaxPoolSize: 1,
		MinPoolSize: 1,
	})
}

type entry struct {
	id       ID
	deps     map[string]struct{}
	listener Listener
}

// Registry is the subscription fan-in/fan-out index (§4.6). The zero value is not usable; use New.
type Registry struct {
	mu         sync.Mutex
	nextID     ID
	entries    map[ID]*entry
	byDep      map[string]map[ID]struct{}
	dispatcher concurrent.Executor
}

// New creates a Registry that dispatches notifications through dispatcher. Pass the result of
// NewDispatcher unless the caller has a reason to share an executor across registries.
func New(dispatcher concurrent.Executor) *Registry {
	return &Registry{
		entries:    make(map[ID]*entry),
		byDep:      make(map[string]map[ID]struct{}),
		dispatcher: dispatcher,
	}
}

// Subscribe registers listener against the given set of DependencyKeys (typically the
// Dependencies a Denormalize call returned for the query/fragment read backing this
// subscription), returning an ID that can be passed to Update or Unsubscribe.
func (r *Registry) Subscribe(deps []string, listener Listener) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	set := toSet(deps)
	r.entries[id] = &entry{id: id, deps: set, listener: listener}
	for dep := range set {
		r.addDepLocked(dep, id)
	}
	return id
}

// Update replaces the dependency set for an existing subscription (§4.6: a subscription's
// dependency set can shrink or grow as the shape of its result changes across re-reads, e.g. a
// list field gaining or losing elements).
func (r *Registry) Update(id ID, deps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	newSet := toSet(deps)
	for dep := range e.deps {
		if _, still := newSet[dep]; !still {
			r.removeDepLocked(dep, id)
		}
	}
	for dep := range newSet {
		if _, had := e.deps[dep]; !had {
			r.addDepLocked(dep, id)
		}
	}
	e.deps = newSet
}

// Unsubscribe removes a subscription; its listener will not be invoked again.
func (r *Registry) Unsubscribe(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return
	}
	for dep := range e.deps {
		r.removeDepLocked(dep, id)
	}
	delete(r.entries, id)
}

// Notify schedules every subscription whose dependency set intersects touched for asynchronous
// delivery (§4.6's fan-out minimality invariant: a subscription never fires for a write that
// didn't change anything it depends on). Each listener invocation runs as its own Task on the
// dispatcher; Notify never blocks on listener execution.
func (r *Registry) Notify(touched []string) {
	if len(touched) == 0 {
		return
	}

	r.mu.Lock()
	affected := make(map[ID]*entry)
	for _, dep := range touched {
		for id := range r.byDep[dep] {
			affected[id] = r.entries[id]
		}
	}
	r.mu.Unlock()

	if len(affected) == 0 {
		return
	}

	ids := make([]ID, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	sortIDs(ids)

	for _, id := range ids {
		e := affected[id]
		listener := e.listener
		if _, err := r.dispatcher.Submit(concurrent.TaskFunc(func() (interface{}, error) {
			pollFireAndForget(listener(touched))
			return nil, nil
		})); err != nil {
			// The dispatcher has been shut down; drop the notification rather than panic the caller
			// that triggered the write.
			continue
		}
	}
}

// NotifyAll schedules every registered subscription for delivery regardless of dependency overlap.
// Cache uses this for events that replace state wholesale rather than cell by cell (optimistic
// layer changes, hydrate, clear) where there is no per-cell Touched list to intersect against.
func (r *Registry) NotifyAll() {
	r.mu.Lock()
	ids := make([]ID, 0, len(r.entries))
	listeners := make(map[ID]Listener, len(r.entries))
	for id, e := range r.entries {
		ids = append(ids, id)
		listeners[id] = e.listener
	}
	r.mu.Unlock()

	sortIDs(ids)
	for _, id := range ids {
		listener := listeners[id]
		if _, err := r.dispatcher.Submit(concurrent.TaskFunc(func() (interface{}, error) {
			pollFireAndForget(listener(nil))
			return nil, nil
		})); err != nil {
			continue
		}
	}
}

// pollFireAndForget polls f exactly once with a no-op Waker and discards whatever it returns. A
// Future that isn't ready yet (future.PollResultPending) simply never gets polled again; Notify doesn't
// await delivery, it only fires the first poll a Listener's returned Future would need to get
// going (e.g. kick off a goroutine internally and return a Future it has already resolved).
func pollFireAndForget(f future.Future) {
	if f == nil {
		return
	}
	f.Poll(future.NopWaker)
}

// Shutdown stops the dispatcher backing this Registry; no further notifications will be
// delivered once the returned channel has received true.
func (r *Registry) Shutdown() (<-chan bool, error) {
	return r.dispatcher.Shutdown()
}

// Len reports how many subscriptions are currently registered (used by Cache.Stats).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) addDepLocked(dep string, id ID) {
	set, ok := r.byDep[dep]
	if !ok {
		set = make(map[ID]struct{})
		r.byDep[dep] = set
	}
	set[id] = struct{}{}
}

func (r *Registry) removeDepLocked(dep string, id ID) {
	set, ok := r.byDep[dep]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byDep, dep)
	}
}

func toSet(deps []string) map[string]struct{} {
	set := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return set
}

// sortIDs keeps Notify's dispatch order stable given a fixed touched set, which in turn makes the
// single-worker dispatcher's delivery order deterministic and reproducible across runs.
func sortIDs(ids []ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
