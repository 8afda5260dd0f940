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

package ncache

import "github.com/riftgraph/ncache/internal/storage"

// FragmentRef is a value, not an object with a back-pointer to the cache (§9): it carries only the
// entity key an entity was masked behind during denormalize (§3, §6), and is what ReadFragment /
// SubscribeFragment accept to root a fragment-only read. Producing and consuming it is trivial by
// construction — there is nothing to snapshot.
//
// Defined in internal/storage and re-exported here by alias: internal/denormalize constructs these
// while masking fragment boundaries, and this package must not import back into denormalize's
// caller-facing surface.
type FragmentRef = storage.FragmentRef

// FragmentRefOf returns the FragmentRef a denormalized read produced for an entity, or ok=false if
// v isn't one (used by ReadFragment/ReadFragments callers to unwrap a prior ReadQuery result).
func FragmentRefOf(v interface{}) (FragmentRef, bool) {
	return storage.AsFragmentRef(v)
}
