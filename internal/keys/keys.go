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

// Package keys implements the cache's key algebra: the pure functions that turn a response object,
// a field selection, and a set of variables into the strings that identify where a value lives in
// Storage and which subscriptions depend on it.
//
// Every function here is pure and allocation-light by design — they run on every field of every
// normalize/denormalize walk, so see ArgsJSON's doc comment for why canonicalization is delegated
// to json-iterator rather than a hand-rolled encoder.
package keys

import (
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// canonicalAPI mirrors encoding/json's map-key-sorting behavior (which json-iterator's
// "compatible" config preserves) so that two argument maps differing only in key order produce
// byte-identical JSON. This is what makes MakeFieldKey canonical per spec §4.1.
var canonicalAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// RootBucket is the sentinel StorageKey for the root bucket (§3).
const RootBucket = "__root"

// RefTag is the field name used by an entity link value (§3, §6).
const RefTag = "__ref"

// FragmentRefTag is the field name used by a fragment reference value (§3, §6).
const FragmentRefTag = "__fragmentRef"

// EmptyArgsSuffix is the canonical FieldKey suffix when a field carries no (resolved) arguments
// (§6).
const EmptyArgsSuffix = "@{}"


// MakeEntityKey builds the canonical storage bucket identity for an entity of the given typename
// and ordered key field values (§4.1). Values are coerced to string the same way regardless of
// their Go dynamic type (string, float64, bool, nil all stringify verbatim); a nil/missing
// component yields an empty segment, matching §3's EntityKey construction rule.
func MakeEntityKey(typename string, keyValues []interface{}) string {
	var b strings.Builder
	b.WriteString(typename)
	for _, v := range keyValues {
		b.WriteByte(':')
		b.WriteString(stringifyKeyComponent(v))
	}
	return b.String()
}

func stringifyKeyComponent(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return toString(t)
	}
}

func toString(v interface{}) string {
	// Fallback for any value shape ResolveArguments/the normalizer hands us (json-iterator decodes
	// numbers as float64 by default, but a caller may pass a typed Go value directly).
	b, err := canonicalAPI.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(b)
	return strings.Trim(s, `"`)
}

// Argument is the tagged variant described in spec §3: a Literal carries a value fixed at compile
// time, a Variable is resolved against the call's Variables map. This package deliberately does not
// define the concrete Literal/Variable implementations — those live on ncache.Argument, the public
// artifact type external tooling constructs. Declaring only the interface here (rather than a
// sealed marker method, as artemis's ast.Selection does) lets the public package satisfy it
// structurally with no import back into internal/keys, avoiding a cycle between the artifact type
// and the key algebra that must resolve it.
type Argument interface {
	Resolve(variables map[string]interface{}) (value interface{}, ok bool)
}

// ResolveArguments concretizes a selection's argument map against a set of variables (§4.1). A
// Variable argument missing from variables is dropped from the resolved map entirely (never
// encoded); an explicit JSON null is preserved as a present nil entry, which MakeFieldKey/ArgsJSON
// distinguish from "no such key" when encoding.
func ResolveArguments(args map[string]Argument, variables map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	resolved := make(map[string]interface{}, len(args))
	for name, arg := range args {
		v, ok := arg.Resolve(variables)
		if !ok {
			continue
		}
		resolved[name] = v
	}
	return resolved
}

// MakeFieldKey builds the canonical FieldKey "name@argsJson" for a field, given its already
// resolved argument map (§4.1, §4.2). Field name is always used, never the response alias —
// aliases affect response shape, never storage identity. An empty (or nil) resolved map encodes
// as the literal "{}".
func MakeFieldKey(name string, resolvedArgs map[string]interface{}) string {
	if len(resolvedArgs) == 0 {
		return name + EmptyArgsSuffix
	}
	return name + "@" + ArgsJSON(resolvedArgs)
}

// ArgsJSON deterministically encodes a resolved argument map: keys sorted ascending by codepoint,
// numbers preserving precision, arrays preserving order (§4.1 invariant 3). We deliberately do not
// hand-roll this encoder: encoding/json (and json-iterator's compatible config, which is what the
// rest of this module already depends on for snapshot I/O) already sorts map[string]interface{}
// keys ascending during Marshal, which is exactly the canonicalization invariant 3 requires — a
// bespoke walker would just be re-implementing what the standard encoder already guarantees.
func ArgsJSON(resolvedArgs map[string]interface{}) string {
	if len(resolvedArgs) == 0 {
		return "{}"
	}
	b, err := canonicalAPI.Marshal(resolvedArgs)
	if err != nil {
		// Arguments are always JSON-compatible values by construction (§3 Variables); a marshal
		// failure here indicates a caller violated that contract.
		panic("ncache/internal/keys: resolved argument map is not JSON-encodable: " + err.Error())
	}
	return string(b)
}

// MakeDependencyKey builds the reactivity unit "storageKey.fieldKey" (§4.1).
func MakeDependencyKey(storageKey, fieldKey string) string {
	return storageKey + "." + fieldKey
}

// MakeMemoKey builds "kind:artifactName:id" (§4.1). id is the stringified variables for a query,
// the entity key for a single-fragment read, or a comma-joined list of entity keys for a batch
// fragment read — callers construct id with IDForVariables/IDForEntityKeys below.
func MakeMemoKey(kind, name, id string) string {
	return kind + ":" + name + ":" + id
}

// IDForVariables renders a Variables map into the deterministic id component of a memo key.
func IDForVariables(variables map[string]interface{}) string {
	if len(variables) == 0 {
		return "{}"
	}
	return ArgsJSON(variables)
}

// IDForEntityKeys renders one or more entity keys into the id component of a memo key: a single
// key for a single-fragment read, a sorted comma-join for a batch read so that the same set of
// fragments always memoizes under the same id regardless of call order.
func IDForEntityKeys(entityKeys []string) string {
	if len(entityKeys) == 1 {
		return entityKeys[0]
	}
	sorted := append([]string(nil), entityKeys...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
