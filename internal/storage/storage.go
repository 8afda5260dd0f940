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

// Package storage implements the cache's two-level flat map (§3, §4.2): StorageKey -> (FieldKey ->
// FieldValue). It holds no knowledge of selections or variables — that belongs to
// internal/normalize and internal/denormalize, which do the selection-driven reads and writes of a
// Storage.
package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/riftgraph/ncache/internal/keys"
)

// Ref is a FieldValue representing an entity link (§3, §6): `{"__ref": "<EntityKey>"}`.
type Ref struct {
	Key string
}

// MarshalJSON implements the §6 wire shape for an entity link.
func (r Ref) MarshalJSON() ([]byte, error) {
	return []byte(`{"` + keys.RefTag + `":"` + escapeJSONString(r.Key) + `"}`), nil
}

func escapeJSONString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AsRef reports whether v is an entity link and returns it.
func AsRef(v interface{}) (Ref, bool) {
	r, ok := v.(Ref)
	return r, ok
}

// FragmentRef is the masking placeholder denormalize emits in place of an entity's fields when
// they were reached only through a FragmentSpread (§3, §4.4): `{"__fragmentRef": "<EntityKey>"}`.
// It carries no back-pointer to the cache — just the entity key a later ReadFragment/
// SubscribeFragment call can use to materialize the masked fragment's own fields.
type FragmentRef struct {
	Key string
}

// MarshalJSON implements the §6 wire shape for a fragment reference.
func (r FragmentRef) MarshalJSON() ([]byte, error) {
	return []byte(`{"` + keys.FragmentRefTag + `":"` + escapeJSONString(r.Key) + `"}`), nil
}

// AsFragmentRef reports whether v is a fragment reference and returns it.
func AsFragmentRef(v interface{}) (FragmentRef, bool) {
	r, ok := v.(FragmentRef)
	return r, ok
}

// Fields is the inner map of a storage bucket: FieldKey -> FieldValue (§3). It also doubles as the
// representation of an inline composite value (§3's "Inline composite").
type Fields map[string]interface{}

// Clone returns a shallow copy of f (used when normalize/mergeFields needs to mutate a bucket
// without aliasing the previous snapshot read by a concurrent reader of the merged/optimistic
// view).
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Storage is the normalized flat store (§3). The zero value is not usable; use New.
type Storage struct {
	mu      sync.RWMutex
	buckets map[string]Fields
}

// New creates an empty Storage with the root bucket already present (§4.2: "The root bucket always
// exists (possibly empty)").
func New() *Storage {
	return &Storage{
		buckets: map[string]Fields{
			keys.RootBucket: {},
		},
	}
}

// Get returns the value stored at storageKey.fieldKey, and whether the cell exists at all (a
// present-but-nil value and an absent cell are distinguished by the second return, per §4.4's
// partial-read semantics).
func (s *Storage) Get(storageKey, fieldKey string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.buckets[storageKey]
	if !ok {
		return nil, false
	}
	v, ok := bucket[fieldKey]
	return v, ok
}

// Bucket returns the fields currently stored at storageKey (nil if the bucket does not exist).
// The returned map must not be mutated by the caller.
func (s *Storage) Bucket(storageKey string) (Fields, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[storageKey]
	return b, ok
}

// HasBucket reports whether storageKey has ever been written.
func (s *Storage) HasBucket(storageKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[storageKey]
	return ok
}

// MergeBucket deep-merges incoming into the bucket at storageKey, creating the bucket on first
// write (§4.2). It returns, for every field present in incoming, the previous value (or nil with
// ok=false if the field was absent) so that the caller (internal/normalize) can drive its onCell
// dependency notification from exactly this information.
func (s *Storage) MergeBucket(storageKey string, incoming Fields) (changed map[string]FieldChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.buckets[storageKey]
	if existing == nil {
		existing = Fields{}
	}
	changed = make(map[string]FieldChange, len(incoming))
	for fieldKey, newValue := range incoming {
		oldValue, hadOld := existing[fieldKey]
		merged := MergeFieldValue(oldValue, hadOld, newValue)
		existing[fieldKey] = merged
		changed[fieldKey] = FieldChange{Old: oldValue, HadOld: hadOld, New: merged}
	}
	s.buckets[storageKey] = existing
	return changed
}

// FieldChange records a single cell's before/after value as observed by a MergeBucket call.
type FieldChange struct {
	Old    interface{}
	HadOld bool
	New    interface{}
}

// DeleteBucket removes storageKey entirely. Invalidate marks buckets stale rather than calling
// this, and Hydrate merges rather than deletes. The root bucket is never deleted by this method.
func (s *Storage) DeleteBucket(storageKey string) {
	if storageKey == keys.RootBucket {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, storageKey)
}

// ReplaceBucket overwrites storageKey's fields wholesale (used by internal/optimistic to seed its
// merged view from the base buckets).
func (s *Storage) ReplaceBucket(storageKey string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[storageKey] = fields
}

// Clear empties every bucket except a freshly-created root bucket (§3 Lifecycle).
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = map[string]Fields{
		keys.RootBucket: {},
	}
}

// Keys returns every storage key currently present, including the root bucket.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.buckets))
	for k := range s.buckets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep-enough copy of every bucket suitable for serialization (§6). Values are
// not cloned beyond the top-level Fields map since FieldValue leaves (scalars, Ref, nested
// Fields/slices) are treated as immutable once written by MergeFieldValue.
func (s *Storage) Snapshot() map[string]Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Fields, len(s.buckets))
	for k, v := range s.buckets {
		out[k] = v.Clone()
	}
	return out
}
