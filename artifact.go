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

// Package ncache implements a normalized, reactive, in-memory cache for responses to a
// GraphQL-style query protocol. It consumes precompiled Artifacts (it never parses or validates a
// document against a schema — that's an external collaborator's job), decomposes entity objects
// into a flat store keyed by typename+identity, and re-materializes consistent response shapes on
// read, notifying subscribers whenever a cell they depend on changes.
package ncache

import "github.com/riftgraph/ncache/internal/ast"

// Kind enumerates the document kinds an Artifact may represent (§3).
type Kind = ast.Kind

// Enumeration of Kind.
const (
	KindQuery        = ast.KindQuery
	KindMutation     = ast.KindMutation
	KindSubscription = ast.KindSubscription
	KindFragment     = ast.KindFragment
)

// Artifact is the immutable, precompiled record a client submits to the cache (§3). It is produced
// by external tooling (document parsing/compilation is explicitly out of scope, §1) and is never
// mutated once constructed.
//
// Artifact and everything it's built from (Selection, Field, FragmentSpread, InlineFragment,
// Argument, Literal, Variable, Directive) are defined in internal/ast and re-exported here by
// alias, so that internal/normalize and internal/denormalize can walk them without this package
// importing back into theirs.
type Artifact = ast.Artifact

// Selection is the tagged variant described in §3: a concrete Field, a FragmentSpread, or an
// InlineFragment. Unlike artemis's ast.Selection (whose marker method is unexported, sealing the
// interface to the ast package), Selection's marker is exported: Artifacts are constructed by
// external tooling outside this module, so the variant set must be satisfiable from outside.
type Selection = ast.Selection

// Field is a concrete field selection (§3). Args maps argument name to Argument (Literal or
// Variable); Selections is present when the field yields a composite value.
type Field = ast.Field

// FragmentSpread denotes a masking boundary (§3): its inlined Selections are carried for
// traversal, but a denormalized read of an entity reached only through a FragmentSpread renders a
// FragmentRef instead of inlining the fragment's fields (fragment masking, §3, §4.4).
type FragmentSpread = ast.FragmentSpread

// InlineFragment is conditional on the runtime __typename matching On (§3).
type InlineFragment = ast.InlineFragment

// Argument is the tagged variant described in §3: Literal or Variable. Both satisfy
// internal/keys.Argument structurally (see that package's doc comment on why the interface isn't
// imported from here).
type Argument = ast.Argument

// Literal is an Argument whose value was fixed when the artifact was compiled (§3).
type Literal = ast.Literal

// Variable is an Argument resolved against the call's Variables map (§3). A name absent from
// Variables resolves as not-ok; an explicit JSON null for that name resolves as (nil, true).
type Variable = ast.Variable

// Variables is the mapping from variable name to JSON-compatible value supplied at call time
// (§3).
type Variables = ast.Variables

// Directive is a named directive application with resolved-at-call-time arguments, e.g.
// @include(if: $flag). See directives.go for evaluation of the two standard conditional
// directives this cache interprets; any other directive name is carried but inert (§1 places
// directive-applicability validation out of scope).
type Directive = ast.Directive
