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

package storage

// MergeFieldValue implements the cell-level deep merge described in §4.2 (mergeFields) plus the
// whole-entity guard of §4.3 step 5 / invariant 2: an inline composite must never overwrite an
// existing entity link for the same cell, since doing so would silently drop the identity of a
// previously-promoted entity when a later payload under-specifies its key fields.
//
// hadOld distinguishes "no previous value" from "previous value happened to be nil"; when the cell
// is new, the incoming value is stored verbatim (nothing to merge against).
func MergeFieldValue(oldValue interface{}, hadOld bool, newValue interface{}) interface{} {
	if !hadOld {
		return newValue
	}

	// Nullish source is preserved as-is and overwrites whatever was there.
	if newValue == nil {
		return nil
	}

	if oldRef, isOldRef := oldValue.(Ref); isOldRef {
		if _, isNewRef := newValue.(Ref); !isNewRef {
			if _, isNewComposite := newValue.(Fields); isNewComposite {
				// Invariant 2: the normalizer only reaches this branch when it could not resolve a
				// complete new key for the entity occupying this cell; keep the existing link.
				return oldRef
			}
		}
		return newValue
	}

	oldArr, oldIsArr := oldValue.([]interface{})
	newArr, newIsArr := newValue.([]interface{})
	if oldIsArr && newIsArr {
		return mergeArrays(oldArr, newArr)
	}
	if oldIsArr != newIsArr {
		// One array, one object (or scalar): incoming wins wholesale.
		return newValue
	}

	oldComposite, oldIsComposite := oldValue.(Fields)
	newComposite, newIsComposite := newValue.(Fields)
	if oldIsComposite && newIsComposite {
		return mergeComposites(oldComposite, newComposite)
	}

	// Primitives and entity links (and any other leaf shape): last-write-wins.
	return newValue
}

func mergeArrays(oldArr, newArr []interface{}) []interface{} {
	// Incoming length wins: elements beyond the old array's length come from incoming, and old
	// elements beyond incoming's length are dropped.
	n := len(newArr)
	merged := make([]interface{}, n)
	for i := 0; i < n; i++ {
		if i < len(oldArr) {
			merged[i] = MergeFieldValue(oldArr[i], true, newArr[i])
		} else {
			merged[i] = newArr[i]
		}
	}
	return merged
}

func mergeComposites(oldComposite, newComposite Fields) Fields {
	merged := oldComposite.Clone()
	for k, v := range newComposite {
		old, had := merged[k]
		merged[k] = MergeFieldValue(old, had, v)
	}
	return merged
}
