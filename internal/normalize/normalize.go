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

// Package normalize implements §4.3's Normalizer: walking a denormalized response object against
// the Selection tree that produced it, and writing it into Storage as a graph of entity buckets
// linked by Ref values.
//
// The walk mirrors the shape of artemis's executor.ExecutionNode/CollectFields recursion (field
// definitions, response keys, runtime-type-conditioned fragment spreading) but runs over a
// concrete response value instead of driving field resolvers, and writes into internal/storage
// instead of an executor/ResultNode tree.
package normalize

import (
	"fmt"
	"reflect"

	"github.com/riftgraph/ncache/internal/ast"
	"github.com/riftgraph/ncache/internal/keys"
	"github.com/riftgraph/ncache/internal/storage"
)

// TypenameField is the response key this package consults to determine an object value's runtime
// type, both for entity-key resolution and for InlineFragment type conditions.
const TypenameField = "__typename"

// Options configures a Normalize call.
type Options struct {
	// AllowInlineDegradation controls what happens when an object claims to be an instance of a
	// declared entity type but its key fields can't be fully resolved (a nil or missing key field).
	// When true (the posture recommended by §7), the object is stored inline under its parent cell
	// instead of being promoted to its own bucket. When false (the zero value), Normalize fails the
	// whole write with an *AmbiguousKeyError.
	AllowInlineDegradation bool
}

// AmbiguousKeyError reports that an entity's declared key fields could not be fully resolved from
// its response object (§7's KindInvalidSchema condition).
type AmbiguousKeyError struct {
	Typename string
}

func (e *AmbiguousKeyError) Error() string {
	return fmt.Sprintf("ncache/internal/normalize: ambiguous key for entity type %q", e.Typename)
}

// Result is the outcome of a successful Normalize call.
type Result struct {
	// Touched lists every DependencyKey ("storageKey.fieldKey") whose FieldValue actually changed
	// as a result of this write, in the order buckets were visited. Empty means the write was a
	// complete no-op against the store's current contents.
	Touched []string
}

// Normalize decomposes response (the data for an operation rooted at selections) into Storage,
// returning every DependencyKey that changed. response must be a JSON-object-shaped
// map[string]interface{}, e.g. the result of decoding a wire payload with encoding/json or
// json-iterator.
func Normalize(
	store *storage.Storage,
	schema ast.SchemaMeta,
	selections []ast.Selection,
	response map[string]interface{},
	variables map[string]interface{},
	opts Options,
) (Result, error) {
	w := &walker{store: store, schema: schema, variables: variables, opts: opts}
	if err := w.writeObject(keys.RootBucket, selections, response); err != nil {
		return Result{}, err
	}
	return Result{Touched: w.touched}, nil
}

type walker struct {
	store     *storage.Storage
	schema    ast.SchemaMeta
	variables map[string]interface{}
	opts      Options
	touched   []string
}

// writeObject merges the fields selections picks out of obj into the bucket named storageKey,
// recording a DependencyKey for every cell whose value actually changed.
func (w *walker) writeObject(storageKey string, selections []ast.Selection, obj map[string]interface{}) error {
	fields, err := w.collectFields(selections, obj)
	if err != nil {
		return err
	}
	changed := w.store.MergeBucket(storageKey, fields)
	for fieldKey, change := range changed {
		if change.HadOld && reflect.DeepEqual(change.Old, change.New) {
			continue
		}
		w.touched = append(w.touched, keys.MakeDependencyKey(storageKey, fieldKey))
	}
	return nil
}

// collectFields evaluates selections against obj and returns the Fields map ready to merge into a
// bucket (or to embed inline, for a non-entity composite value). It does not write to storage
// itself — callers that recurse into an entity do so through writeObject, which also handles the
// change-tracking half of the job.
func (w *walker) collectFields(selections []ast.Selection, obj map[string]interface{}) (storage.Fields, error) {
	fields := storage.Fields{}
	for _, sel := range selections {
		switch s := sel.(type) {
		case ast.Field:
			if !ast.ShouldIncludeSelection(s.Directives, w.variables) {
				continue
			}
			value, present := obj[s.ResponseKey()]
			if !present {
				continue
			}
			resolved := resolveArgs(s.Args, w.variables)
			fieldKey := keys.MakeFieldKey(s.Name, resolved)
			converted, err := w.convertValue(value, s.Array, s.Selections)
			if err != nil {
				return nil, err
			}
			fields[fieldKey] = converted

		case ast.FragmentSpread:
			if nested, err := w.collectFields(s.Selections, obj); err != nil {
				return nil, err
			} else {
				mergeInto(fields, nested)
			}

		case ast.InlineFragment:
			typename, _ := obj[TypenameField].(string)
			if s.On != "" && s.On != typename {
				continue
			}
			if nested, err := w.collectFields(s.Selections, obj); err != nil {
				return nil, err
			} else {
				mergeInto(fields, nested)
			}
		}
	}
	return fields, nil
}

// convertValue turns one field's raw response value into the shape Storage.Fields expects: a
// scalar passes through untouched, a composite becomes a storage.Ref (entity) or an inline
// composite map (value object), and an array recurses elementwise (§4.2, §4.3).
func (w *walker) convertValue(value interface{}, array bool, subSelections []ast.Selection) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if array {
		list, ok := value.([]interface{})
		if !ok {
			return value, nil
		}
		out := make([]interface{}, len(list))
		for i, elem := range list {
			converted, err := w.convertValue(elem, false, subSelections)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	if len(subSelections) == 0 {
		return value, nil
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return value, nil
	}

	typename, _ := obj[TypenameField].(string)
	if w.schema.IsEntity(typename) {
		entityKey, ok := w.resolveEntityKey(typename, obj)
		if ok {
			if err := w.writeObject(entityKey, subSelections, obj); err != nil {
				return nil, err
			}
			return storage.Ref{Key: entityKey}, nil
		}
		if !w.opts.AllowInlineDegradation {
			return nil, &AmbiguousKeyError{Typename: typename}
		}
	}

	// Value object (or an entity degrading to inline storage): recurse without promoting to a
	// bucket of its own, so the composite lives inline in whichever cell referenced it.
	fields, err := w.collectFields(subSelections, obj)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// resolveEntityKey computes the EntityKey for obj per its declared key fields, reporting ok=false
// if any key field is missing or nil (§7's ambiguous-key condition).
func (w *walker) resolveEntityKey(typename string, obj map[string]interface{}) (string, bool) {
	keyFields := w.schema.KeyFields(typename)
	keyValues := make([]interface{}, len(keyFields))
	for i, kf := range keyFields {
		v, present := obj[kf]
		if !present || v == nil {
			return "", false
		}
		keyValues[i] = v
	}
	return keys.MakeEntityKey(typename, keyValues), true
}

// resolveArgs adapts an ast.Argument map (the public artifact's concrete variant) to the
// map[string]interface{} internal/keys.ResolveArguments expects, since Go doesn't consider
// map[string]ast.Argument and map[string]keys.Argument the same type even though ast.Literal and
// ast.Variable both satisfy keys.Argument structurally.
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

func mergeInto(dst, src storage.Fields) {
	for k, v := range src {
		dst[k] = v
	}
}
