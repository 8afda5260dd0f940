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

import (
	"github.com/riftgraph/ncache/internal/keys"
	"github.com/riftgraph/ncache/iterator"
)

// InvalidateTarget names what Invalidate should mark stale (§4.7, §6). Exactly one of the four
// shapes §6 describes applies, distinguished by which fields are set:
//
//	{__typename: "Query", field?, args?}                     Typename == "Query"
//	{__typename: T, ...keyFields}                            len(KeyFields) > 0, Field == ""
//	{__typename: T, ...keyFields, field, args?}               len(KeyFields) > 0, Field != ""
//	{__typename: T}                                           len(KeyFields) == 0, Typename != "Query"
type InvalidateTarget struct {
	// Typename is the entity type to invalidate, or the literal "Query" for a root-level field.
	Typename string
	// KeyFields gives the entity's key field values, keyed by field name (§3). Empty/nil selects
	// every entity of Typename (the whole-type prefix form).
	KeyFields map[string]interface{}
	// Field optionally narrows the notification to a single field on the resolved bucket: only that
	// field's DependencyKey is fanned out to subscriptions. The stale mark is per bucket, so the
	// whole bucket is marked stale whether or not Field is set. Empty fans out over every field
	// stored in the bucket.
	Field string
	// Args, if Field is set, are the field's already-resolved arguments (§4.1); nil means the
	// field carries no arguments.
	Args map[string]interface{}
}

// invalidateResult is resolveInvalidateTargets' output: the StorageKeys to mark stale and the
// DependencyKeys to fan out to subscriptions over.
type invalidateResult struct {
	storageKeys    []string
	dependencyKeys []string
}

// resolveInvalidateTargets expands target into the concrete StorageKeys/DependencyKeys it names
// (§6). The caller holds c.mu for writing.
func (c *Cache) resolveInvalidateTargets(target InvalidateTarget) invalidateResult {
	if target.Typename == "Query" {
		return c.resolveBucketTarget(keys.RootBucket, target.Field, target.Args)
	}

	if len(target.KeyFields) == 0 {
		return c.resolveTypePrefixTarget(target.Typename)
	}

	storageKey := keys.MakeEntityKey(target.Typename, orderedKeyValues(c.schema.KeyFields(target.Typename), target.KeyFields))
	return c.resolveBucketTarget(storageKey, target.Field, target.Args)
}

// resolveBucketTarget handles the Query-root and single-entity shapes, which share the same
// "one bucket, optionally one field within it" resolution.
func (c *Cache) resolveBucketTarget(storageKey, field string, args map[string]interface{}) invalidateResult {
	if field != "" {
		depKey := keys.MakeDependencyKey(storageKey, keys.MakeFieldKey(field, args))
		return invalidateResult{storageKeys: []string{storageKey}, dependencyKeys: []string{depKey}}
	}
	return invalidateResult{storageKeys: []string{storageKey}, dependencyKeys: c.dependencyKeysForBucket(storageKey)}
}

// resolveTypePrefixTarget handles the {__typename: T} whole-type shape: every bucket currently
// stored under the T: prefix (§3's EntityKey construction), via the same prefix scan the storage
// package already exposes for this purpose.
func (c *Cache) resolveTypePrefixTarget(typename string) invalidateResult {
	var result invalidateResult
	it := c.base.EntityKeys(typename)
	for {
		storageKey, err := it.Next()
		if err == iterator.Done {
			break
		}
		result.storageKeys = append(result.storageKeys, storageKey)
		result.dependencyKeys = append(result.dependencyKeys, c.dependencyKeysForBucket(storageKey)...)
	}
	return result
}

// dependencyKeysForBucket builds the DependencyKey for every field currently stored in storageKey,
// so a whole-bucket invalidate fans out to every subscription depending on any of its cells.
func (c *Cache) dependencyKeysForBucket(storageKey string) []string {
	bucket, ok := c.base.Bucket(storageKey)
	if !ok {
		return nil
	}
	depKeys := make([]string, 0, len(bucket))
	for fieldKey := range bucket {
		depKeys = append(depKeys, keys.MakeDependencyKey(storageKey, fieldKey))
	}
	return depKeys
}

// orderedKeyValues renders a KeyFields map into the positional value list MakeEntityKey expects,
// in the order the schema declares for typename (§3). A key field the target omits renders as nil,
// matching MakeEntityKey's "nil/missing component yields an empty segment" rule.
func orderedKeyValues(keyFieldNames []string, keyFields map[string]interface{}) []interface{} {
	values := make([]interface{}, len(keyFieldNames))
	for i, name := range keyFieldNames {
		values[i] = keyFields[name]
	}
	return values
}
