/**
 * Copyright (c) 2018, The Artemis Authors.
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

// Package stale implements §4.7's invalidation tracking: a set of StorageKeys marked stale by
// Invalidate, without deleting their data. A stale bucket's last-known value remains readable
// (Denormalize still resolves it) but reads report Stale=true, matching the Open Question
// decision recorded in DESIGN.md to prefer mark-and-keep over delete-and-miss for invalidation.
package stale

import "sync"

// Set is a concurrency-safe set of stale StorageKeys. The zero value is not usable; use New.
type Set struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// New creates an empty Set.
func New() *Set {
	return &Set{keys: make(map[string]struct{})}
}

// Mark records storageKey as stale.
func (s *Set) Mark(storageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[storageKey] = struct{}{}
}

// Unmark clears storageKey's stale bit, e.g. after a write re-populates it with fresh data.
func (s *Set) Unmark(storageKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, storageKey)
}

// IsStale reports whether storageKey is currently marked stale.
func (s *Set) IsStale(storageKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[storageKey]
	return ok
}

// AnyStale reports whether any of storageKeys is currently marked stale, short-circuiting on the
// first match. Cache uses this to derive a read's aggregate Stale bit from every bucket a
// Denormalize call visited.
func (s *Set) AnyStale(storageKeys []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range storageKeys {
		if _, ok := s.keys[k]; ok {
			return true
		}
	}
	return false
}

// Clear removes every stale mark.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]struct{})
}

// Len reports how many StorageKeys are currently marked stale (used by Cache.Stats).
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
