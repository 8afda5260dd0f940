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

package ncache_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/riftgraph/ncache"
)

func secondViewerResponse(id, name string) map[string]interface{} {
	return map[string]interface{}{
		"viewer": map[string]interface{}{
			"__typename": "User",
			"id":         id,
			"name":       name,
			"email":      "x@example.com",
		},
	}
}

var _ = Describe("Invalidate", func() {
	var cache *ncache.Cache

	BeforeEach(func() {
		cache = ncache.New(userSchema(), ncache.Options{})
	})

	It("invalidates every bucket of a type with the whole-type prefix shape", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, secondViewerResponse("1", "Ada"))).To(Succeed())
		Expect(cache.WriteQuery(viewerArtifact(), nil, secondViewerResponse("2", "Grace"))).To(Succeed())

		cache.Invalidate(ncache.InvalidateTarget{Typename: "User"})

		stats := cache.Stats()
		Expect(stats.StaleBuckets).To(Equal(2))
	})

	It("invalidates a single Query-root field", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, secondViewerResponse("1", "Ada"))).To(Succeed())

		cache.Invalidate(ncache.InvalidateTarget{Typename: "Query", Field: "viewer"})

		result := cache.ReadQuery(viewerArtifact(), nil)
		Expect(result.Stale).To(BeTrue())
		Expect(result.Data["viewer"].(map[string]interface{})["name"]).To(Equal("Ada"))
	})

	It("invalidates one entity bucket by key fields, leaving siblings untouched", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, secondViewerResponse("1", "Ada"))).To(Succeed())
		Expect(cache.WriteQuery(viewerArtifact(), nil, secondViewerResponse("2", "Grace"))).To(Succeed())

		cache.Invalidate(ncache.InvalidateTarget{
			Typename:  "User",
			KeyFields: map[string]interface{}{"id": "1"},
		})

		Expect(cache.Stats().StaleBuckets).To(Equal(1))
	})
})
