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

// EntityMeta describes how to compute the identity of one entity typename (§3).
//
// EntityMeta and SchemaMeta are defined in internal/ast and re-exported here by alias for the
// same reason as Artifact above: internal/normalize and internal/denormalize need to consult a
// SchemaMeta while walking an internal/ast.Selection tree.
type EntityMeta = ast.EntityMeta

// SchemaMeta maps entity typename to its EntityMeta (§3). A typename with no entry is a value
// object: instances are stored inline rather than promoted to their own bucket.
type SchemaMeta = ast.SchemaMeta
