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

// Package ast defines the Selection tagged variant and Artifact record of spec §3, in the same
// spirit as artemis's graphql/ast package: a sum type describing what a client asked for, carried
// by value, with no back-reference to a schema or a cache. It lives apart from the public ncache
// package (which re-exports these as type aliases) so that internal/normalize, internal/denormalize
// and internal/keys can depend on it without completing an import cycle back through ncache.
package ast

// Kind enumerates the document kinds an Artifact may represent.
type Kind string

// Enumeration of Kind.
const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
	KindFragment     Kind = "fragment"
)

// Artifact is the immutable, precompiled record a client submits to the cache (§3).
type Artifact struct {
	Kind       Kind
	Name       string
	Selections []Selection
}

// Selection is the tagged variant described in §3: a concrete Field, a FragmentSpread, or an
// InlineFragment. The marker method is exported (unlike artemis's sealed ast.Selection) because
// Artifacts are meant to be constructed from outside this module.
type Selection interface {
	SelectionKind() string
}

// Field is a concrete field selection (§3).
type Field struct {
	Name       string
	Alias      string
	Array      bool
	Nullable   bool
	Args       map[string]Argument
	Directives []Directive
	Selections []Selection
}

// SelectionKind implements Selection.
func (Field) SelectionKind() string { return "field" }

// ResponseKey is the key under which this field's value appears in a denormalized response (§4.4).
func (f Field) ResponseKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// FragmentSpread denotes a masking boundary (§3).
type FragmentSpread struct {
	Name       string
	Selections []Selection
}

// SelectionKind implements Selection.
func (FragmentSpread) SelectionKind() string { return "fragmentSpread" }

// InlineFragment is conditional on the runtime __typename matching On (§3).
type InlineFragment struct {
	On         string
	Selections []Selection
}

// SelectionKind implements Selection.
func (InlineFragment) SelectionKind() string { return "inlineFragment" }

// Argument is the tagged variant described in §3: Literal or Variable.
type Argument interface {
	Resolve(variables map[string]interface{}) (value interface{}, ok bool)
	ArgumentKind() string
}

// Literal is an Argument whose value was fixed when the artifact was compiled.
type Literal struct {
	Value interface{}
}

// ArgumentKind implements Argument.
func (Literal) ArgumentKind() string { return "literal" }

// Resolve implements Argument.
func (l Literal) Resolve(map[string]interface{}) (interface{}, bool) {
	return l.Value, true
}

// Variable is an Argument resolved against the call's Variables map.
type Variable struct {
	Name string
}

// ArgumentKind implements Argument.
func (Variable) ArgumentKind() string { return "variable" }

// Resolve implements Argument.
func (v Variable) Resolve(variables map[string]interface{}) (interface{}, bool) {
	val, ok := variables[v.Name]
	return val, ok
}

var (
	_ Argument  = Literal{}
	_ Argument  = Variable{}
	_ Selection = Field{}
	_ Selection = FragmentSpread{}
	_ Selection = InlineFragment{}
)

// Directive is a named directive application with resolved-at-call-time arguments.
type Directive struct {
	Name string
	Args map[string]Argument
}

// Variables is the mapping from variable name to JSON-compatible value supplied at call time
// (§3).
type Variables map[string]interface{}

// EntityMeta describes how to compute the identity of one entity typename (§3).
type EntityMeta struct {
	KeyFields []string
}

// SchemaMeta maps entity typename to its EntityMeta (§3). A typename with no entry is a value
// object: instances are stored inline rather than promoted to their own bucket.
type SchemaMeta map[string]EntityMeta

// IsEntity reports whether typename has declared key fields.
func (s SchemaMeta) IsEntity(typename string) bool {
	_, ok := s[typename]
	return ok
}

// KeyFields returns the ordered key fields for typename, or nil if it is not a declared entity.
func (s SchemaMeta) KeyFields(typename string) []string {
	return s[typename].KeyFields
}

// ShouldIncludeSelection evaluates the two standard conditional directives, @include and @skip
// (SPEC_FULL's supplemented-feature: §3 declares Field.Directives but §4.3/§4.4 never specify
// their evaluation). Any other directive name is inert.
func ShouldIncludeSelection(directives []Directive, variables map[string]interface{}) bool {
	include := true
	for _, d := range directives {
		switch d.Name {
		case "include":
			if v, ok := resolveIfArg(d.Args, variables); ok {
				include = include && v
			}
		case "skip":
			if v, ok := resolveIfArg(d.Args, variables); ok {
				include = include && !v
			}
		}
	}
	return include
}

func resolveIfArg(args map[string]Argument, variables map[string]interface{}) (bool, bool) {
	arg, ok := args["if"]
	if !ok {
		return false, false
	}
	v, ok := arg.Resolve(variables)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
