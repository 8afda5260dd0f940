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

import "github.com/riftgraph/ncache/internal/ast"

// ShouldIncludeSelection evaluates the two standard conditional directives, @include and @skip,
// against a selection's Directives (SPEC_FULL's "Supplemented Features": §3 declares
// Field.Directives but §4.3/§4.4 never say what the walk does with them). Any other directive name
// is inert — directive applicability is a schema-validation concern and is out of scope (§1).
//
// A selection with no recognized directive always includes. If both are present, the selection is
// included only when @skip's condition is false and @include's is true (the GraphQL spec's own rule
// for the two together).
//
// The evaluation itself lives in internal/ast so that internal/normalize and internal/denormalize
// can call it directly while walking a Selection tree without importing this package.
func ShouldIncludeSelection(directives []Directive, variables map[string]interface{}) bool {
	return ast.ShouldIncludeSelection(directives, variables)
}
