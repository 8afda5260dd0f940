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
	"io"
	"sync"

	"github.com/riftgraph/ncache/concurrent/future"
	"github.com/riftgraph/ncache/internal/denormalize"
	"github.com/riftgraph/ncache/internal/keys"
	"github.com/riftgraph/ncache/internal/normalize"
	"github.com/riftgraph/ncache/internal/optimistic"
	"github.com/riftgraph/ncache/internal/sharing"
	"github.com/riftgraph/ncache/internal/stale"
	"github.com/riftgraph/ncache/internal/storage"
	"github.com/riftgraph/ncache/internal/subscription"
	"github.com/riftgraph/ncache/snapshot"
)

// Options configures a Cache at construction time.
type Options struct {
	// AllowInlineDegradation is forwarded to internal/normalize.Options on every write; see that
	// type's doc comment. Defaults to false (fail closed with a KindInvalidSchema error) unless set.
	AllowInlineDegradation bool
}

// ReadResult is the outcome of ReadQuery/ReadFragment (§5): the re-materialized response data,
// whether the read was complete, and whether any bucket it touched is currently marked stale by
// Invalidate (§4.7, §8's Invalidation testable property). A partial read (Complete: false) carries
// Data: nil and Stale: false, per §4.4/§4.7/§8 scenario 5 — Complete is the signal a caller checks
// to distinguish "incomplete" from "complete but empty"; Data == nil alone means "miss".
type ReadResult struct {
	Data     map[string]interface{}
	Complete bool
	Stale    bool
}

// FragmentsResult is the outcome of ReadFragments (§4.9): a single batch result across every
// requested FragmentRef, in the same order as the refs passed in. Data is nil if any fragment in
// the batch read as partial — the batch is all-or-nothing, not one partial result per element.
type FragmentsResult struct {
	Data  []map[string]interface{}
	Stale bool
}

// Stats reports point-in-time counters useful for diagnostics and tests; it is additive to the
// spec (not a named operation in §5) but costs nothing to expose given the component Lens already
// track these counts.
type Stats struct {
	Buckets          int
	Subscriptions    int
	StaleBuckets     int
	OptimisticLayers int
}

// Cache is the normalized, reactive, in-memory response cache described by §3-§8. The zero value
// is not usable; use New.
type Cache struct {
	mu sync.RWMutex

	schema SchemaMeta
	opts   Options

	base       *storage.Storage
	optimistic *optimistic.Manager
	staleSet   *stale.Set
	registry   *subscription.Registry
	memo       map[string]interface{}
}

// New creates an empty Cache for the given schema (§3's entity-identity declarations).
func New(schema SchemaMeta, opts Options) *Cache {
	base := storage.New()
	dispatcher, err := subscription.NewDispatcher()
	if err != nil {
		// NewWorkerPoolExecutor only fails on an invalid config literal; the fixed config this
		// package passes is always valid, so this condition is unreachable in practice.
		panic("ncache: failed to start the subscription dispatcher: " + err.Error())
	}
	return &Cache{
		schema:     schema,
		opts:       opts,
		base:       base,
		optimistic: optimistic.New(base),
		staleSet:   stale.New(),
		registry:   subscription.New(dispatcher),
		memo:       make(map[string]interface{}),
	}
}

// Close starts shutting down the subscription dispatcher backing this Cache and returns without
// waiting. Listener tasks already queued still run; the returned channel receives true once the
// dispatcher has terminated, after which no listener fires. Callers that created subscriptions
// should Unsubscribe or simply drop the Cache once that happens.
func (c *Cache) Close() (<-chan bool, error) {
	return c.registry.Shutdown()
}

// WriteQuery decomposes response into the cache per artifact's selections (§4.3, §5), notifying
// every subscription whose dependency set intersects what actually changed, and clearing the
// stale mark on every bucket this write touched (§4.7: "a subsequent writeQuery touching T:id.f
// clears stale for that cell").
func (c *Cache) WriteQuery(artifact *Artifact, variables map[string]interface{}, response map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := normalize.Normalize(c.base, c.schema, artifact.Selections, response, variables, normalize.Options{
		AllowInlineDegradation: c.opts.AllowInlineDegradation,
	})
	if err != nil {
		if ak, ok := err.(*normalize.AmbiguousKeyError); ok {
			return NewError(Op("ncache.WriteQuery"), KindInvalidSchema, ak.Error())
		}
		return NewError(Op("ncache.WriteQuery"), KindInternal, err.Error())
	}

	for _, dep := range result.Touched {
		c.staleSet.Unmark(storageKeyOf(dep))
	}

	c.invalidateMemo()
	c.registry.Notify(result.Touched)
	return nil
}

// ReadQuery re-materializes artifact's response shape from the cache (§4.4, §5), overlaying any
// active optimistic layers (§4.8) and reusing structurally-unchanged subtrees from the previous
// read under the same memo key (§4.5, §8's Structural sharing property).
func (c *Cache) ReadQuery(artifact *Artifact, variables map[string]interface{}) ReadResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.read(keys.RootBucket, artifact.Selections, variables, keys.MakeMemoKey("query", artifact.Name, keys.IDForVariables(variables)))
}

// ReadFragment re-materializes a single fragment's own fields, rooted at the EntityKey a prior
// masked read handed back via FragmentRef (§4.4, §5).
func (c *Cache) ReadFragment(artifact *Artifact, ref FragmentRef, variables map[string]interface{}) ReadResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.read(ref.Key, artifact.Selections, variables, keys.MakeMemoKey("fragment", artifact.Name, keys.IDForEntityKeys([]string{ref.Key})))
}

// ReadFragments batches ReadFragment across several FragmentRefs sharing the same artifact (e.g. a
// list field whose elements were all masked behind the same fragment), as a single collectively
// memoized result (§4.9): the comma-joined entity keys key one shared memo slot, and Data is nil in
// its entirety if any one fragment in the batch reads as partial.
func (c *Cache) ReadFragments(artifact *Artifact, refs []FragmentRef, variables map[string]interface{}) FragmentsResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entityKeys := make([]string, len(refs))
	for i, ref := range refs {
		entityKeys[i] = ref.Key
	}
	memoKey := keys.MakeMemoKey("fragments", artifact.Name, keys.IDForEntityKeys(entityKeys))

	view := c.optimistic.View()
	results := make([]denormalize.Result, len(refs))
	complete := true
	stale := false
	for i, ref := range refs {
		results[i] = denormalize.Denormalize(view, artifact.Selections, ref.Key, variables)
		if !results[i].Complete {
			complete = false
		}
		if c.staleSet.AnyStale(results[i].StorageKeys) {
			stale = true
		}
	}

	if !complete {
		return FragmentsResult{Data: nil, Stale: false}
	}

	fresh := make([]interface{}, len(results))
	for i, r := range results {
		fresh[i] = interface{}(r.Data)
	}

	combined := interface{}(fresh)
	if previous, ok := c.memo[memoKey]; ok {
		combined = sharing.Reuse(previous, combined)
	}
	c.memo[memoKey] = combined

	sharedSlice, _ := combined.([]interface{})
	data := make([]map[string]interface{}, len(sharedSlice))
	for i, v := range sharedSlice {
		data[i], _ = v.(map[string]interface{})
	}

	return FragmentsResult{Data: data, Stale: stale}
}

// read is the shared implementation behind ReadQuery/ReadFragment. A partial read (any selected
// cell absent) returns Data: nil, Complete: false, Stale: false per §4.4/§4.7/§8 scenario 5, and
// skips memoization entirely — there is nothing structurally useful to share from an incomplete
// read, and memoizing nil would only ever collapse trivially against a later nil.
func (c *Cache) read(storageKey string, selections []Selection, variables map[string]interface{}, memoKey string) ReadResult {
	view := c.optimistic.View()
	result := denormalize.Denormalize(view, selections, storageKey, variables)

	if !result.Complete {
		return ReadResult{Data: nil, Complete: false, Stale: false}
	}

	data := interface{}(result.Data)
	if memoKey != "" {
		if previous, ok := c.memo[memoKey]; ok {
			data = sharing.Reuse(previous, data)
		}
		c.memo[memoKey] = data
	}

	sharedData, _ := data.(map[string]interface{})

	return ReadResult{
		Data:     sharedData,
		Complete: true,
		Stale:    c.staleSet.AnyStale(result.StorageKeys),
	}
}

// SubscribeQuery dry-runs denormalize over the merged view to collect the query's current
// dependency set, then registers listener against it (§4.6, §5): it fires on every subsequent
// write that touches a DependencyKey this read consulted, re-denormalizing and calling
// Registry.Update so the subscription tracks a result whose shape (and therefore deps) can grow or
// shrink across fires.
func (c *Cache) SubscribeQuery(artifact *Artifact, variables map[string]interface{}, listener func(ReadResult)) subscription.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	deps, _ := c.denormalizeForSubscription(keys.RootBucket, artifact.Selections, variables)
	var id subscription.ID
	id = c.registry.Subscribe(deps, func(touched []string) future.Future {
		c.mu.RLock()
		refreshedDeps, refreshed := c.denormalizeForSubscription(keys.RootBucket, artifact.Selections, variables)
		c.mu.RUnlock()
		c.registry.Update(id, refreshedDeps)
		listener(refreshed)
		return nil
	})
	return id
}

// SubscribeFragment is SubscribeQuery's fragment-rooted counterpart (§4.6, §5).
func (c *Cache) SubscribeFragment(artifact *Artifact, ref FragmentRef, variables map[string]interface{}, listener func(ReadResult)) subscription.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	deps, _ := c.denormalizeForSubscription(ref.Key, artifact.Selections, variables)
	var id subscription.ID
	id = c.registry.Subscribe(deps, func(touched []string) future.Future {
		c.mu.RLock()
		refreshedDeps, refreshed := c.denormalizeForSubscription(ref.Key, artifact.Selections, variables)
		c.mu.RUnlock()
		c.registry.Update(id, refreshedDeps)
		listener(refreshed)
		return nil
	})
	return id
}

// Unsubscribe cancels a subscription returned by SubscribeQuery/SubscribeFragment (§5).
func (c *Cache) Unsubscribe(id subscription.ID) {
	c.registry.Unsubscribe(id)
}

// denormalizeForSubscription runs a read purely to recompute a subscription's dependency set and
// current value; it bypasses the read-memo cache (subscriptions keep their own view of "did this
// change" via Dependencies, not structural sharing).
func (c *Cache) denormalizeForSubscription(storageKey string, selections []Selection, variables map[string]interface{}) ([]string, ReadResult) {
	view := c.optimistic.View()
	result := denormalize.Denormalize(view, selections, storageKey, variables)
	if !result.Complete {
		return result.Dependencies, ReadResult{Data: nil, Complete: false, Stale: false}
	}
	return result.Dependencies, ReadResult{
		Data:     result.Data,
		Complete: true,
		Stale:    c.staleSet.AnyStale(result.StorageKeys),
	}
}

// Invalidate marks target's bucket (and, for the Query-root/prefix forms, the matching subset of
// storage keys) stale without deleting its data (§4.7, the Open Question decided in DESIGN.md in
// favor of mark-and-keep), firing every subscription whose dependency set intersects it.
func (c *Cache) Invalidate(target InvalidateTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := c.resolveInvalidateTargets(target)
	for _, storageKey := range touched.storageKeys {
		c.staleSet.Mark(storageKey)
	}
	c.invalidateMemo()
	c.registry.Notify(touched.dependencyKeys)
}

// WriteOptimistic applies a named optimistic overlay on top of the base store (§4.8, §5):
// subsequent reads see data overlaid on whatever writeQuery has committed, until RemoveOptimistic
// tears the layer down.
func (c *Cache) WriteOptimistic(id string, artifact *Artifact, variables map[string]interface{}, response map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scratch := storage.New()
	if _, err := normalize.Normalize(scratch, c.schema, artifact.Selections, response, variables, normalize.Options{
		AllowInlineDegradation: c.opts.AllowInlineDegradation,
	}); err != nil {
		if ak, ok := err.(*normalize.AmbiguousKeyError); ok {
			return NewError(Op("ncache.WriteOptimistic"), KindInvalidSchema, ak.Error())
		}
		return NewError(Op("ncache.WriteOptimistic"), KindInternal, err.Error())
	}

	c.optimistic.Write(id, scratch.Snapshot())
	c.invalidateMemo()
	c.notifyAll()
	return nil
}

// RemoveOptimistic tears down a named optimistic layer (§4.8, §5), restoring whatever the base
// store (plus any remaining layers) would show.
func (c *Cache) RemoveOptimistic(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.optimistic.Remove(id)
	c.invalidateMemo()
	c.notifyAll()
}

// notifyAll wakes every live subscription regardless of dependency overlap. Optimistic writes
// replace an entire named layer's contents at once rather than merging cell by cell, so there is
// no cheap per-cell Touched list to compute the way WriteQuery has one; re-checking every
// subscription's own dependency set on each fire (denormalizeForSubscription) is what actually
// filters which listeners see a changed value.
func (c *Cache) notifyAll() {
	c.registry.NotifyAll()
}

// Extract serializes the cache's committed (non-optimistic) state and read-memo cache to w in the
// §6 snapshot layout.
func (c *Cache) Extract(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot.Extract(w, c.base, c.memo)
}

// Hydrate merges a §6 snapshot produced by Extract into this cache (§5, §6), firing subscriptions
// for whatever it brings in.
func (c *Cache) Hydrate(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	memo, err := snapshot.Hydrate(c.base, r)
	if err != nil {
		return NewError(Op("ncache.Hydrate"), KindMalformedSnapshot, err.Error())
	}
	for k, v := range memo {
		c.memo[k] = v
	}
	c.invalidateMemo()
	c.notifyAll()
	return nil
}

// Clear empties the cache entirely (§3 Lifecycle): storage, stale marks, optimistic layers, and
// the read-memo cache. Subscriptions remain registered but will see an empty store on their next
// fire.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.base.Clear()
	c.staleSet.Clear()
	c.optimistic = optimistic.New(c.base)
	c.invalidateMemo()
	c.notifyAll()
}

// Stats reports point-in-time counters (additive to §5).
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Buckets:          len(c.base.Keys()),
		Subscriptions:    c.registry.Len(),
		StaleBuckets:     c.staleSet.Len(),
		OptimisticLayers: c.optimistic.Len(),
	}
}

// invalidateMemo drops every cached structural-sharing read result; called on any write, optimistic
// change, invalidation, or hydrate, since any of those can change what a subsequent read returns.
func (c *Cache) invalidateMemo() {
	c.memo = make(map[string]interface{})
}

func storageKeyOf(dependencyKey string) string {
	for i := 0; i < len(dependencyKey); i++ {
		if dependencyKey[i] == '.' {
			return dependencyKey[:i]
		}
	}
	return dependencyKey
}
