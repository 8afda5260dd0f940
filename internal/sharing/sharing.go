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

// Package sharing implements §4.5's structural sharing: when a denormalized read produces a value
// deeply equal to one already handed out for the same position, the previous value is reused so a
// caller comparing results with == (or a shallow React-style prop diff) sees no change.
//
// The recursive equality walk follows the same reflect.DeepEqual-driven comparison artemis's own
// graphql/inspect.go uses to detect repeated values, specialized here to also return a reused
// reference instead of just a bool.
package sharing

import "reflect"

// Reuse compares fresh against previous and returns a value deeply equal to fresh that maximizes
// reuse of previous's subtrees: every map or slice position where fresh and previous agree is
// returned as the previous reference rather than a freshly built copy. A caller holding on to a
// prior read can then tell whether a nested field changed by pointer/interface equality on the
// returned subtree, without walking the whole structure itself.
func Reuse(previous, fresh interface{}) interface{} {
	reused, _ := reuse(previous, fresh)
	return reused
}

// reuse is Reuse's recursive worker. The second return reports whether the returned value is
// previous itself (true) or a freshly built value that differs from it (false); callers use this
// to decide whether a map/slice containing this child can itself collapse back to its own
// previous reference.
func reuse(previous, fresh interface{}) (interface{}, bool) {
	if previous == nil || fresh == nil {
		return fresh, previous == nil && fresh == nil
	}

	switch freshVal := fresh.(type) {
	case map[string]interface{}:
		prevVal, ok := previous.(map[string]interface{})
		if !ok {
			return fresh, false
		}
		return reuseMap(prevVal, freshVal)

	case []interface{}:
		prevVal, ok := previous.([]interface{})
		if !ok {
			return fresh, false
		}
		return reuseSlice(prevVal, freshVal)

	default:
		if equalScalar(previous, fresh) {
			return previous, true
		}
		return fresh, false
	}
}

// reuseMap recurses key by key; if every key present in fresh also reuses unchanged from
// previous, and the key sets match, the whole map collapses back to previous instead of the
// freshly built copy.
func reuseMap(previous, fresh map[string]interface{}) (map[string]interface{}, bool) {
	if len(previous) != len(fresh) {
		return buildMap(previous, fresh), false
	}
	out := make(map[string]interface{}, len(fresh))
	allSame := true
	for key, freshChild := range fresh {
		prevChild, existed := previous[key]
		if !existed {
			allSame = false
			out[key] = freshChild
			continue
		}
		reusedChild, same := reuse(prevChild, freshChild)
		out[key] = reusedChild
		if !same {
			allSame = false
		}
	}
	if allSame {
		return previous, true
	}
	return out, false
}

func buildMap(previous, fresh map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fresh))
	for key, freshChild := range fresh {
		if prevChild, ok := previous[key]; ok {
			out[key] = Reuse(prevChild, freshChild)
		} else {
			out[key] = freshChild
		}
	}
	return out
}

// reuseSlice recurses element by element; a length change is always a fresh slice since there's
// no stable per-element identity to diff against (§4.5 only promises reuse, not a list diff/key
// algorithm).
func reuseSlice(previous, fresh []interface{}) ([]interface{}, bool) {
	if len(previous) != len(fresh) {
		return fresh, false
	}
	out := make([]interface{}, len(fresh))
	allSame := true
	for i, freshChild := range fresh {
		reusedChild, same := reuse(previous[i], freshChild)
		out[i] = reusedChild
		if !same {
			allSame = false
		}
	}
	if allSame {
		return previous, true
	}
	return out, false
}

// equalScalar compares two leaf FieldValues (scalars, storage.Ref, storage.FragmentRef — anything
// that isn't a map[string]interface{} or []interface{}) using reflect.DeepEqual, the same
// comparison internal/normalize uses to decide whether a cell actually changed.
func equalScalar(previous, fresh interface{}) bool {
	return reflect.DeepEqual(previous, fresh)
}
