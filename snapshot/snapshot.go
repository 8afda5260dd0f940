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

// Package snapshot implements §6's snapshot file layout: `Extract` streams the current Storage
// (plus the read-memo cache) out as JSON, `Hydrate` reads that shape back in and merges it into a
// Storage. Extract writes with jsonwriter.Stream, the same low-allocation writer artemis's
// executor uses for result marshaling, since a snapshot walks every bucket and field the cache
// holds and a buffered io.Writer-backed stream avoids building the whole document in memory first.
// Hydrate decodes with json-iterator, already this module's canonical JSON codec (internal/keys).
package snapshot

import (
	"errors"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/riftgraph/ncache/internal/keys"
	"github.com/riftgraph/ncache/internal/storage"
	"github.com/riftgraph/ncache/jsonwriter"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformed reports that Hydrate's input did not match the §6 snapshot shape (§7's
// KindMalformedSnapshot condition). Cache wraps this in an *ncache.Error before returning it.
var ErrMalformed = errors.New("ncache/snapshot: input does not match the snapshot file layout")

// Extract writes store and memo (the cache's keyed last-read-result map, §4.1's MemoKey) to w in
// the §6 layout: `{"storage": {...}, "memo": {...}}`.
func Extract(w io.Writer, store *storage.Storage, memo map[string]interface{}) error {
	stream := jsonwriter.NewStream(w)
	stream.WriteObjectStart()
	stream.WriteObjectField("storage")
	writeBuckets(stream, store.Snapshot())
	stream.WriteMore()
	stream.WriteObjectField("memo")
	writeInterfaceMap(stream, memo)
	stream.WriteObjectEnd()
	return stream.Flush()
}

func writeBuckets(stream *jsonwriter.Stream, buckets map[string]storage.Fields) {
	if len(buckets) == 0 {
		stream.WriteEmptyObject()
		return
	}
	storageKeys := make([]string, 0, len(buckets))
	for k := range buckets {
		storageKeys = append(storageKeys, k)
	}
	sort.Strings(storageKeys)

	stream.WriteObjectStart()
	for i, storageKey := range storageKeys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(storageKey)
		writeInterfaceMap(stream, buckets[storageKey])
	}
	stream.WriteObjectEnd()
}

// writeInterfaceMap writes a map[string]interface{}-shaped value (a bucket's Fields, or the memo
// map) with keys in sorted order so Extract's output is byte-stable across calls.
func writeInterfaceMap(stream *jsonwriter.Stream, m map[string]interface{}) {
	if len(m) == 0 {
		stream.WriteEmptyObject()
		return
	}
	fieldKeys := make([]string, 0, len(m))
	for k := range m {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)

	stream.WriteObjectStart()
	for i, fieldKey := range fieldKeys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(fieldKey)
		stream.WriteInterface(m[fieldKey])
	}
	stream.WriteObjectEnd()
}

// Hydrate decodes r as a §6 snapshot and merges every decoded bucket into store via
// Storage.MergeBucket (never replacing a bucket wholesale, so hydrating into a non-empty cache
// only adds/overwrites the cells the snapshot actually carries). It returns the decoded memo map
// for the caller to fold into its own read-memo cache.
func Hydrate(store *storage.Storage, r io.Reader) (map[string]interface{}, error) {
	var doc struct {
		Storage map[string]map[string]interface{} `json:"storage"`
		Memo    map[string]interface{}             `json:"memo"`
	}
	if err := codec.NewDecoder(r).Decode(&doc); err != nil {
		return nil, ErrMalformed
	}
	if doc.Storage == nil {
		return nil, ErrMalformed
	}

	for storageKey, rawFields := range doc.Storage {
		store.MergeBucket(storageKey, reviveFields(rawFields))
	}
	return doc.Memo, nil
}

// reviveFields turns json-iterator's decoded map[string]interface{} back into storage.Fields,
// recursively restoring `{"__ref": "<EntityKey>"}` objects to storage.Ref values (§6).
func reviveFields(raw map[string]interface{}) storage.Fields {
	out := make(storage.Fields, len(raw))
	for k, v := range raw {
		out[k] = reviveValue(v)
	}
	return out
}

func reviveValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) == 1 {
			if refKey, ok := val[keys.RefTag]; ok {
				if key, ok := refKey.(string); ok {
					return storage.Ref{Key: key}
				}
			}
		}
		return reviveFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = reviveValue(elem)
		}
		return out
	default:
		return v
	}
}
