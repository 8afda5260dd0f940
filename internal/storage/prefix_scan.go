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

package storage

import (
	"sort"
	"strings"

	"github.com/riftgraph/ncache/iterator"
)

// EntityKeyIterator walks the entity keys of a given typename for the whole-entity-type
// invalidation target (§4.7), in sorted order. The matching keys are collected into a slice when
// EntityKeys is called. It follows the package iterator convention: Next returns iterator.Done once
// exhausted.
type EntityKeyIterator struct {
	remaining []string
}

// Next returns the next matching EntityKey, or iterator.Done when exhausted.
func (it *EntityKeyIterator) Next() (string, error) {
	if len(it.remaining) == 0 {
		return "", iterator.Done
	}
	k := it.remaining[0]
	it.remaining = it.remaining[1:]
	return k, nil
}

// EntityKeys returns an iterator over entity keys of the form "typename:..." currently present in
// s, used by §4.7's `{__typename: T}` (prefix scan) invalidation target.
func (s *Storage) EntityKeys(typename string) *EntityKeyIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := typename + ":"
	matches := make([]string, 0)
	for k := range s.buckets {
		if strings.HasPrefix(k, prefix) {
			matches = append(matches, k)
		}
	}
	sort.Strings(matches)
	return &EntityKeyIterator{remaining: matches}
}
