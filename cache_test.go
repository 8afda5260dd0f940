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
	"bytes"
	"reflect"
	"sync/atomic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/riftgraph/ncache"
)

func userSchema() ncache.SchemaMeta {
	return ncache.SchemaMeta{
		"User": ncache.EntityMeta{KeyFields: []string{"id"}},
	}
}

func viewerArtifact() *ncache.Artifact {
	return &ncache.Artifact{
		Name: "Viewer",
		Selections: []ncache.Selection{
			ncache.Field{
				Name: "viewer",
				Selections: []ncache.Selection{
					ncache.Field{Name: "__typename"},
					ncache.Field{Name: "id"},
					ncache.Field{Name: "name"},
				},
			},
		},
	}
}

// maskedViewerArtifact selects viewer's email only through a fragment spread, so a subscription
// rooted at it must not fire when email changes without a corresponding change to __typename/id.
func maskedViewerArtifact() *ncache.Artifact {
	return &ncache.Artifact{
		Name: "ViewerMasked",
		Selections: []ncache.Selection{
			ncache.Field{
				Name: "viewer",
				Selections: []ncache.Selection{
					ncache.Field{Name: "__typename"},
					ncache.Field{Name: "id"},
					ncache.FragmentSpread{
						Name: "UserEmail",
						Selections: []ncache.Selection{
							ncache.Field{Name: "email"},
						},
					},
				},
			},
		},
	}
}

func userEmailFragment() *ncache.Artifact {
	return &ncache.Artifact{
		Kind:       ncache.KindFragment,
		Name:       "UserEmail",
		Selections: []ncache.Selection{ncache.Field{Name: "email"}},
	}
}

func viewerResponse(name, email string) map[string]interface{} {
	return map[string]interface{}{
		"viewer": map[string]interface{}{
			"__typename": "User",
			"id":         "1",
			"name":       name,
			"email":      email,
		},
	}
}

var _ = Describe("Cache", func() {
	var cache *ncache.Cache

	BeforeEach(func() {
		cache = ncache.New(userSchema(), ncache.Options{})
	})

	It("round-trips a normalized write back through a denormalized read", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		result := cache.ReadQuery(viewerArtifact(), nil)
		Expect(result.Complete).To(BeTrue())
		Expect(result.Stale).To(BeFalse())
		viewer, ok := result.Data["viewer"].(map[string]interface{})
		Expect(ok).To(BeTrue())
		Expect(viewer["id"]).To(Equal("1"))
		Expect(viewer["name"]).To(Equal("Ada"))
	})

	It("is a no-op on a repeat identical write: no subscription fires", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		var fired int32
		id := cache.SubscribeQuery(viewerArtifact(), nil, func(ncache.ReadResult) {
			atomic.AddInt32(&fired, 1)
		})
		defer cache.Unsubscribe(id)

		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())
		Consistently(func() int32 { return atomic.LoadInt32(&fired) }).Should(BeZero())
	})

	It("fires exactly the subscriptions whose dependencies actually changed", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		var fired int32
		id := cache.SubscribeQuery(viewerArtifact(), nil, func(ncache.ReadResult) {
			atomic.AddInt32(&fired, 1)
		})
		defer cache.Unsubscribe(id)

		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Hopper", "ada@example.com"))).To(Succeed())
		Eventually(func() int32 { return atomic.LoadInt32(&fired) }).Should(Equal(int32(1)))
	})

	It("masks a fragment-only field so a query subscription never sees it change", func() {
		Expect(cache.WriteQuery(maskedViewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		var fired int32
		id := cache.SubscribeQuery(maskedViewerArtifact(), nil, func(ncache.ReadResult) {
			atomic.AddInt32(&fired, 1)
		})
		defer cache.Unsubscribe(id)

		// Only email changes; the masked query never selected it directly, only through the fragment
		// spread, so its dependency set must not include it.
		Expect(cache.WriteQuery(maskedViewerArtifact(), nil, viewerResponse("Ada", "grace@example.com"))).To(Succeed())
		Consistently(func() int32 { return atomic.LoadInt32(&fired) }).Should(BeZero())

		result := cache.ReadQuery(maskedViewerArtifact(), nil)
		viewer := result.Data["viewer"].(map[string]interface{})
		ref, ok := ncache.FragmentRefOf(viewer["__fragmentRef"])
		Expect(ok).To(BeTrue())

		fragmentResult := cache.ReadFragment(userEmailFragment(), ref, nil)
		Expect(fragmentResult.Data["email"]).To(Equal("grace@example.com"))
	})

	It("reuses unchanged subtrees by reference across successive reads (structural sharing)", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		first := cache.ReadQuery(viewerArtifact(), nil)
		second := cache.ReadQuery(viewerArtifact(), nil)
		Expect(reflect.ValueOf(first.Data).Pointer()).To(Equal(reflect.ValueOf(second.Data).Pointer()))
	})

	It("marks a bucket stale on Invalidate without discarding its data, and clears stale on a covering write", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		cache.Invalidate(ncache.InvalidateTarget{
			Typename:  "User",
			KeyFields: map[string]interface{}{"id": "1"},
		})

		stale := cache.ReadQuery(viewerArtifact(), nil)
		Expect(stale.Stale).To(BeTrue())
		Expect(stale.Data["viewer"].(map[string]interface{})["name"]).To(Equal("Ada"))

		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())
		fresh := cache.ReadQuery(viewerArtifact(), nil)
		Expect(fresh.Stale).To(BeFalse())
	})

	It("overlays optimistic writes without committing them to the base store", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		Expect(cache.WriteOptimistic("opt-1", viewerArtifact(), nil, viewerResponse("Ada (saving)", "ada@example.com"))).To(Succeed())
		during := cache.ReadQuery(viewerArtifact(), nil)
		Expect(during.Data["viewer"].(map[string]interface{})["name"]).To(Equal("Ada (saving)"))

		cache.RemoveOptimistic("opt-1")
		after := cache.ReadQuery(viewerArtifact(), nil)
		Expect(after.Data["viewer"].(map[string]interface{})["name"]).To(Equal("Ada"))
	})

	It("extracts and hydrates the cache's state into a fresh Cache", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		var buf bytes.Buffer
		Expect(cache.Extract(&buf)).To(Succeed())

		fresh := ncache.New(userSchema(), ncache.Options{})
		Expect(fresh.Hydrate(bytes.NewReader(buf.Bytes()))).To(Succeed())

		result := fresh.ReadQuery(viewerArtifact(), nil)
		Expect(result.Complete).To(BeTrue())
		Expect(result.Data["viewer"].(map[string]interface{})["name"]).To(Equal("Ada"))
	})

	It("empties the store, stale marks, and optimistic layers on Clear", func() {
		Expect(cache.WriteQuery(viewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())
		Expect(cache.WriteOptimistic("opt-1", viewerArtifact(), nil, viewerResponse("Ada (saving)", "ada@example.com"))).To(Succeed())

		cache.Clear()

		stats := cache.Stats()
		Expect(stats.Buckets).To(Equal(1)) // Clear leaves a fresh, empty root bucket
		Expect(stats.StaleBuckets).To(BeZero())
		Expect(stats.OptimisticLayers).To(BeZero())

		result := cache.ReadQuery(viewerArtifact(), nil)
		Expect(result.Complete).To(BeFalse())
		Expect(result.Data).To(BeNil())
		Expect(result.Stale).To(BeFalse())
	})

	It("surfaces a partial read as {data: nil, stale: false}, not a partially-populated hit", func() {
		// viewerArtifact selects viewer.name, which was never written, so the read is partial even
		// though the viewer bucket itself exists.
		Expect(cache.WriteQuery(&ncache.Artifact{
			Name: "ViewerID",
			Selections: []ncache.Selection{
				ncache.Field{
					Name: "viewer",
					Selections: []ncache.Selection{
						ncache.Field{Name: "__typename"},
						ncache.Field{Name: "id"},
					},
				},
			},
		}, nil, map[string]interface{}{
			"viewer": map[string]interface{}{"__typename": "User", "id": "1"},
		})).To(Succeed())

		result := cache.ReadQuery(viewerArtifact(), nil)
		Expect(result.Complete).To(BeFalse())
		Expect(result.Data).To(BeNil())
		Expect(result.Stale).To(BeFalse())
	})

	It("batches ReadFragments into a single collectively-memoized result, null on any partial", func() {
		Expect(cache.WriteQuery(maskedViewerArtifact(), nil, viewerResponse("Ada", "ada@example.com"))).To(Succeed())

		secondArtifact := &ncache.Artifact{
			Name: "Second",
			Selections: []ncache.Selection{
				ncache.Field{
					Name: "second",
					Args: map[string]ncache.Argument{"id": ncache.Literal{Value: "2"}},
					Selections: []ncache.Selection{
						ncache.Field{Name: "__typename"},
						ncache.Field{Name: "id"},
						ncache.Field{Name: "name"},
						ncache.Field{Name: "email"},
					},
				},
			},
		}
		Expect(cache.WriteQuery(secondArtifact, nil, map[string]interface{}{
			"second": map[string]interface{}{"__typename": "User", "id": "2", "name": "Grace", "email": "grace@example.com"},
		})).To(Succeed())

		refs := []ncache.FragmentRef{{Key: "User:1"}, {Key: "User:2"}}
		result := cache.ReadFragments(userEmailFragment(), refs, nil)
		Expect(result.Data).To(HaveLen(2))
		Expect(result.Data[0]["email"]).To(Equal("ada@example.com"))
		Expect(result.Data[1]["email"]).To(Equal("grace@example.com"))

		missingRefs := []ncache.FragmentRef{{Key: "User:1"}, {Key: "User:999"}}
		partial := cache.ReadFragments(userEmailFragment(), missingRefs, nil)
		Expect(partial.Data).To(BeNil())
		Expect(partial.Stale).To(BeFalse())
	})
})
