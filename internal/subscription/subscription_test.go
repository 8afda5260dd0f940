/**
 * Copyright (c) 2019, The Artemis Authors.
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

package subscription_test

import (
	"sync"

	"github.com/riftgraph/ncache/concurrent/future"
	"github.com/riftgraph/ncache/internal/subscription"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// pollCountingFuture counts how many times it is polled and completes on the first poll.
type pollCountingFuture struct {
	mu     *sync.Mutex
	polled *int
}

func (f pollCountingFuture) Poll(future.Waker) (future.PollResult, error) {
	f.mu.Lock()
	*f.polled++
	f.mu.Unlock()
	return nil, nil
}

var _ = Describe("Registry", func() {
	var (
		dispatcher interface {
			Shutdown() (<-chan bool, error)
		}
		registry *subscription.Registry
	)

	BeforeEach(func() {
		d, err := subscription.NewDispatcher()
		Expect(err).ShouldNot(HaveOccurred())
		dispatcher = d
		registry = subscription.New(d)
	})

	AfterEach(func() {
		terminated, err := dispatcher.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		Eventually(terminated).Should(Receive(BeTrue()))
	})

	It("only notifies a subscription whose dependencies intersect the touched set", func() {
		var mu sync.Mutex
		var gotA, gotB [][]string

		registry.Subscribe([]string{"User:1.name@{}"}, func(touched []string) future.Future {
			mu.Lock()
			gotA = append(gotA, touched)
			mu.Unlock()
			return nil
		})
		registry.Subscribe([]string{"User:2.name@{}"}, func(touched []string) future.Future {
			mu.Lock()
			gotB = append(gotB, touched)
			mu.Unlock()
			return nil
		})

		registry.Notify([]string{"User:1.name@{}"})

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(gotA)
		}).Should(Equal(1))

		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(gotB)
		}).Should(Equal(0))
	})

	It("stops notifying after Unsubscribe", func() {
		var mu sync.Mutex
		count := 0

		id := registry.Subscribe([]string{"User:1.name@{}"}, func([]string) future.Future {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
		registry.Unsubscribe(id)
		registry.Notify([]string{"User:1.name@{}"})

		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}).Should(Equal(0))
	})

	It("follows Update to a new dependency set", func() {
		var mu sync.Mutex
		count := 0

		id := registry.Subscribe([]string{"User:1.name@{}"}, func([]string) future.Future {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
		registry.Update(id, []string{"User:2.name@{}"})

		registry.Notify([]string{"User:1.name@{}"})
		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}).Should(Equal(0))

		registry.Notify([]string{"User:2.name@{}"})
		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}).Should(Equal(1))
	})

	It("polls a Listener's returned Future exactly once, fire-and-forget", func() {
		var mu sync.Mutex
		polled := 0

		registry.Subscribe([]string{"User:1.name@{}"}, func([]string) future.Future {
			return pollCountingFuture{mu: &mu, polled: &polled}
		})

		registry.Notify([]string{"User:1.name@{}"})
		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return polled
		}).Should(Equal(1))

		Consistently(func() int {
			mu.Lock()
			defer mu.Unlock()
			return polled
		}).Should(Equal(1))
	})

	It("reports the number of live subscriptions via Len", func() {
		Expect(registry.Len()).To(Equal(0))
		id := registry.Subscribe([]string{"User:1.name@{}"}, func([]string) future.Future { return nil })
		Expect(registry.Len()).To(Equal(1))
		registry.Unsubscribe(id)
		Expect(registry.Len()).To(Equal(0))
	})
})
