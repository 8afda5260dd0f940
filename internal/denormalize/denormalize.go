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

// Package denormalize implements §4.4's Denormalizer: re-materializing a response shape by
// walking a Selection tree and reading cells out of internal/storage, the mirror image of
// internal/normalize's write-side walk. It also implements fragment masking (§3): an entity
// reached only through a FragmentSpread renders as a storage.FragmentRef instead of having the
// spread's fields inlined, exactly as artemis's result_node.go separates "resolved" from
// "unresolved" shapes but specialized to a read-only, schema-free walk.
package denormalize

import (
	"github.com/riftgraph/ncache/internal/ast"
	"github.com/riftgraph/ncache/internal/keys"
	"github.com/riftgraph/ncache/internal/storage"
)

// TypenameField is the response key denormalize consults to evaluate InlineFragment type
// conditions.
const TypenameField = "__typename"

// Result is the outcome of a Denormalize call.
type Result struct {
	// Data is the re-materialized response object, or nil if the root storageKey's bucket doesn't
	// exist at all.
	Data map[string]interface{}
	// Complete is false if any selected cell (at any depth) was absent from storage — a genuine
	// cache miss as opposed to a field that legitimately resolved to null (§4.4's partial-read
	// semantics). Callers treat an incomplete read as a signal to go fetch from the origin.
	Complete bool
	// Dependencies lists every DependencyKey this read actually consulted, including ones that were
	// absent. A subscription rooted at this read should be notified whenever any of these changes
	// (§4.6).
	Dependencies []string
	// StorageKeys lists every bucket (entity or root) this read visited, for checking the read's
	// result against internal/stale's invalidation marks — a coarser granularity than
	// Dependencies, since staleness is tracked per bucket rather than per cell (§4.7).
	StorageKeys []string
}

// Denormalize re-materializes the response selections describe, rooted at storageKey (RootBucket
// for a query/mutation/subscription read, an EntityKey for a fragment read).
func Denormalize(
	store *storage.Storage,
	selections []ast.Selection,
	storageKey string,
	variables map[string]interface{},
) Result {
	bucket, ok := store.Bucket(storageKey)
	if !ok {
		return Result{Data: nil, Complete: false}
	}
	w := &walker{store: store, variables: variables, complete: true}
	w.visitStorageKey(storageKey)
	data := w.collectObject(bucket, storageKey, storageKey, selections)
	return Result{Data: data, Complete: w.complete, Dependencies: w.deps, StorageKeys: w.storageKeys}
}

type walker struct {
	store       *storage.Storage
	variables   map[string]interface{}
	complete    bool
	deps        []string
	storageKeys []string
	seenKeys    map[string]struct{}
}

func (w *walker) visitStorageKey(storageKey string) {
	if w.seenKeys == nil {
		w.seenKeys = make(map[string]struct{})
	}
	if _, ok := w.seenKeys[storageKey]; ok {
		return
	}
	w.seenKeys[storageKey] = struct{}{}
	w.storageKeys = append(w.storageKeys, storageKey)
}

// collectObject reads selections out of source, a bucket's Fields (or an inline composite's raw
// map). storageKey is the bucket source was read from; it is only meaningful when source is
// bucket-backed. entityKeyForMask is the key the FragmentRef placeholder carries when a
// FragmentSpread boundary is crossed.
func (w *walker) collectObject(source map[string]interface{}, storageKey, entityKeyForMask string, selections []ast.Selection) map[string]interface{} {
	out := map[string]interface{}{}
	masked := false
	for _, sel := range selections {
		switch s := sel.(type) {
		case ast.Field:
			if !ast.ShouldIncludeSelection(s.Directives, w.variables) {
				continue
			}
			resolved := resolveArgs(s.Args, w.variables)
			fieldKey := keys.MakeFieldKey(s.Name, resolved)
			value, present := source[fieldKey]
			w.deps = append(w.deps, keys.MakeDependencyKey(storageKey, fieldKey))
			if !present {
				w.complete = false
				out[s.ResponseKey()] = nil
				continue
			}
			out[s.ResponseKey()] = w.convertValue(value, s.Array, s.Selections)

		case ast.FragmentSpread:
			if !masked {
				out[keys.FragmentRefTag] = storage.FragmentRef{Key: entityKeyForMask}
				masked = true
			}
			// The spread's own fields are deliberately not merged: a caller holding that fragment's
			// artifact must use the FragmentRef above to read them (fragment masking, §3, §4.4).

		case ast.InlineFragment:
			typename, _ := source[keys.MakeFieldKey(TypenameField, nil)].(string)
			if s.On != "" && s.On != typename {
				continue
			}
			nested := w.collectObject(source, storageKey, entityKeyForMask, s.Selections)
			for k, v := range nested {
				out[k] = v
			}
		}
	}
	return out
}

// collectInline reads selections out of an inline composite value (§3's "inline composite"): a
// plain map with no storage key of its own, so no dependency tracking and no fragment masking are
// possible — it has no address to hand back. FragmentSpreads on an inline value simply flatten.
func (w *walker) collectInline(source map[string]interface{}, selections []ast.Selection) map[string]interface{} {
	out := map[string]interface{}{}
	for _, sel := range selections {
		switch s := sel.(type) {
		case ast.Field:
			if !ast.ShouldIncludeSelection(s.Directives, w.variables) {
				continue
			}
			resolved := resolveArgs(s.Args, w.variables)
			fieldKey := keys.MakeFieldKey(s.Name, resolved)
			value, present := source[fieldKey]
			if !present {
				w.complete = false
				out[s.ResponseKey()] = nil
				continue
			}
			out[s.ResponseKey()] = w.convertValue(value, s.Array, s.Selections)

		case ast.FragmentSpread:
			nested := w.collectInline(source, s.Selections)
			for k, v := range nested {
				out[k] = v
			}

		case ast.InlineFragment:
			typename, _ := source[keys.MakeFieldKey(TypenameField, nil)].(string)
			if s.On != "" && s.On != typename {
				continue
			}
			nested := w.collectInline(source, s.Selections)
			for k, v := range nested {
				out[k] = v
			}
		}
	}
	return out
}

// convertValue turns one stored FieldValue back into a response value: a scalar passes through, a
// storage.Ref dereferences into its own bucket (recursing with masking enabled), an inline
// composite recurses without masking, and an array maps elementwise.
func (w *walker) convertValue(value interface{}, array bool, subSelections []ast.Selection) interface{} {
	if value == nil {
		return nil
	}
	if array {
		list, ok := value.([]interface{})
		if !ok {
			return value
		}
		out := make([]interface{}, len(list))
		for i, elem := range list {
			out[i] = w.convertValue(elem, false, subSelections)
		}
		return out
	}
	if len(subSelections) == 0 {
		return value
	}
	if ref, ok := storage.AsRef(value); ok {
		w.visitStorageKey(ref.Key)
		bucket, ok := w.store.Bucket(ref.Key)
		if !ok {
			w.complete = false
			// No bucket exists yet for this entity: depend on its __typename cell so a subscription
			// rooted at this read fires once the entity's first write brings the bucket into being
			// (§4.4 step 3), even though nothing under it was actually read this time.
			w.deps = append(w.deps, keys.MakeDependencyKey(ref.Key, keys.MakeFieldKey(TypenameField, nil)))
			return nil
		}
		return w.collectObject(bucket, ref.Key, ref.Key, subSelections)
	}
	if inline, ok := value.(storage.Fields); ok {
		return w.collectInline(inline, subSelections)
	}
	return value
}

// resolveArgs adapts an ast.Argument map to the map[string]interface{} internal/keys expects; see
// internal/normalize's identical helper for why this can't be a direct map conversion.
func resolveArgs(args map[string]ast.Argument, variables map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	adapted := make(map[string]keys.Argument, len(args))
	for name, arg := range args {
		adapted[name] = arg
	}
	return keys.ResolveArguments(adapted, variables)
}
