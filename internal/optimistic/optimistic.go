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

// Package optimistic implements §4.8's Optimistic Layers: named overlays applied on top of the
// base Storage, merged (in application order) into a single read-only view on demand.
//
// The merged view is computed lazily and memoized behind a concurrent/future.Future, in the same
// spirit as that package's join.go aggregating multiple Futures into one: here a single Future
// aggregates the base store and every active layer, resolves synchronously the first time
// anything asks for the view, and is discarded (replaced by a fresh, unresolved Future) the next
// time a layer is added or removed.
package optimistic

import (
	"sync"

	"github.com/riftgraph/ncache/concurrent/future"
	"github.com/riftgraph/ncache/internal/storage"
)

// Layer is one named optimistic overlay: a set of bucket-level field writes applied on top of
// whatever is beneath it (the base store, or an earlier layer), in the same shape Storage.
// MergeBucket accepts.
type Layer struct {
	ID      string
	Buckets map[string]storage.Fields
}

// Manager holds the base store and the ordered stack of active optimistic layers (§4.8). The zero
// value is not usable; use New.
type Manager struct {
	mu     sync.Mutex
	base   *storage.Storage
	order  []string
	layers map[string]Layer
	memo   *mergedFuture
}

// New creates a Manager with no active layers, backed by base. base is read through, never
// mutated, by this package.
func New(base *storage.Storage) *Manager {
	return &Manager{base: base, layers: make(map[string]Layer)}
}

// Write applies (or replaces) the named optimistic layer, invalidating the memoized merged view.
// A second Write under the same id replaces that layer's contents entirely rather than merging
// into its previous contents — each optimistic response is a complete override of its own layer.
func (m *Manager) Write(id string, buckets map[string]storage.Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.layers[id]; !exists {
		m.order = append(m.order, id)
	}
	m.layers[id] = Layer{ID: id, Buckets: buckets}
	m.memo = nil
}

// Remove tears down the named optimistic layer (§4.8's "remove restores what the base store would
// have shown"), invalidating the memoized merged view. It is a no-op if id is not active.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.layers[id]; !exists {
		return
	}
	delete(m.layers, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.memo = nil
}

// HasLayers reports whether any optimistic layer is currently active.
func (m *Manager) HasLayers() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order) > 0
}

// Len reports how many optimistic layers are currently active (used by Cache.Stats).
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// View returns the merged store: the base store with every active layer folded in, in
// application order, using the same field-level merge rule normalize uses for writes
// (storage.MergeFieldValue). The result is computed once per layer-stack generation and reused
// across repeated View calls until the next Write or Remove invalidates it.
func (m *Manager) View() *storage.Storage {
	m.mu.Lock()
	if len(m.order) == 0 {
		base := m.base
		m.mu.Unlock()
		return base
	}
	if m.memo == nil {
		layers := make([]Layer, len(m.order))
		for i, id := range m.order {
			layers[i] = m.layers[id]
		}
		m.memo = &mergedFuture{base: m.base, layers: layers}
	}
	memo := m.memo
	m.mu.Unlock()

	result, _ := memo.resolve()
	return result
}

// mergedFuture implements future.Future over the (potentially expensive, if many layers are
// stacked) work of folding every active layer into a fresh Storage. Poll always resolves
// synchronously on first call — there is no I/O here, just map merging — so it never returns
// future.PollResultPending, but it still goes through the Future contract so that a future
// caller that does need to defer this work (e.g. onto the subscription dispatcher) can do so
// without this package changing shape.
type mergedFuture struct {
	base   *storage.Storage
	layers []Layer

	once  sync.Once
	value *storage.Storage
}

var _ future.Future = (*mergedFuture)(nil)

// Poll implements future.Future.
func (f *mergedFuture) Poll(waker future.Waker) (future.PollResult, error) {
	f.once.Do(func() {
		f.value = computeMerge(f.base, f.layers)
	})
	return f.value, nil
}

// resolve polls f to completion. Since Poll above never returns Pending, a single call always
// suffices; future.NopWaker is passed because nothing here is waiting to be woken.
func (f *mergedFuture) resolve() (*storage.Storage, error) {
	result, err := f.Poll(future.NopWaker)
	if err != nil {
		return nil, err
	}
	return result.(*storage.Storage), nil
}

func computeMerge(base *storage.Storage, layers []Layer) *storage.Storage {
	merged := storage.New()
	for key, fields := range base.Snapshot() {
		merged.ReplaceBucket(key, fields)
	}
	for _, layer := range layers {
		for key, fields := range layer.Buckets {
			merged.MergeBucket(key, fields)
		}
	}
	return merged
}
