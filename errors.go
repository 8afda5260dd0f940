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
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Op describes the operation being performed, usually the name of the Cache method invoked, e.g.
// "ncache.WriteQuery".
type Op string

// ErrKind classifies an Error (§7).
type ErrKind uint8

// Enumeration of ErrKind. The core is "effectively infallible" per §7 — these are the only three
// synchronous error conditions it recognizes; everything else is valid data or a non-error
// {data: nil, stale: false} result.
const (
	// KindOther is an unclassified error.
	KindOther ErrKind = iota
	// KindInvalidSchema: writeQuery encountered an entity response whose key-field resolution is
	// ambiguous given the schema (§7). The default behavior recommended by §7 is to degrade to
	// inline storage instead of raising this — see Cache's AllowInlineDegradation option.
	KindInvalidSchema
	// KindMalformedSnapshot: hydrate's input does not match the §6 wire shape.
	KindMalformedSnapshot
	// KindInternal marks a condition the cache's own invariants should have prevented.
	KindInternal
)

func (k ErrKind) String() string {
	switch k {
	case KindInvalidSchema:
		return "invalid schema"
	case KindMalformedSnapshot:
		return "malformed snapshot"
	case KindInternal:
		return "internal error"
	}
	return "other error"
}

// Error is this package's structured error value, modeled directly on upspin.io's error design
// (the same inspiration artemis's graphql.Error cites): an Op naming where it happened, a Kind
// classifying what went wrong, an optional wrapped cause, and a Message for anything that doesn't
// fit either.
type Error struct {
	Op      Op
	Kind    ErrKind
	Message string
	Err     error
}

var _ error = (*Error)(nil)

// NewError builds an *Error from a free-form argument list, mirroring the teacher's NewError: pass
// whatever subset of Op/ErrKind/error/string applies.
func NewError(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case ErrKind:
			e.Kind = a
		case string:
			e.Message = a
		case error:
			e.Err = a
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("ncache.NewError: bad call from %s:%d: %v", file, line, args)
			return fmt.Errorf("ncache: unknown type %T, value %v in error call", a, a)
		}
	}
	if e.Kind == KindOther {
		if prev, ok := e.Err.(*Error); ok {
			e.Kind = prev.Kind
		}
	}
	return e
}

// Error implements Go's error interface.
func (e *Error) Error() string {
	var b strings.Builder
	pad := func(s string) {
		if b.Len() > 0 {
			b.WriteString(s)
		}
	}
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Kind != KindOther {
		pad(": ")
		b.WriteString(e.Kind.String())
	}
	if e.Message != "" {
		pad(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		pad(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind ErrKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
