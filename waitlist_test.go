// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package cadence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitlist(t *testing.T) {
	t.Run("broadcast wakes every waiter", func(t *testing.T) {
		var l waitlist
		ws := []*waiter{l.enqueue(), l.enqueue(), l.enqueue()}

		l.broadcast()
		for _, w := range ws {
			w.wait() // <- deadlock if broadcast missed a waiter
			assert.Equal(t, waiterBroadcasted, w.state)
		}
	})

	t.Run("broadcast empties the list", func(t *testing.T) {
		var l waitlist
		l.enqueue()
		l.enqueue()
		l.broadcast()

		assert.Nil(t, l.head)
		assert.Nil(t, l.tail)
	})

	t.Run("broadcast on empty list is a noop", func(t *testing.T) {
		var l waitlist
		l.broadcast()
	})

	t.Run("list can be reused after broadcast", func(t *testing.T) {
		var l waitlist
		l.enqueue()
		l.broadcast()

		w := l.enqueue()
		l.broadcast()
		w.wait()
	})

	t.Run("cancelled waiter leaves the ring", func(t *testing.T) {
		var l waitlist
		first := l.enqueue()
		mid := l.enqueue()
		last := l.enqueue()

		assert.True(t, l.cancel(mid))
		l.broadcast()

		first.wait()
		last.wait()
		assert.Equal(t, waiterCancelled, mid.state)
		assert.Equal(t, waiterBroadcasted, first.state)
		assert.Equal(t, waiterBroadcasted, last.state)
	})

	t.Run("cancelling the only waiter empties the list", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()

		assert.True(t, l.cancel(w))
		assert.Nil(t, l.head)
		assert.Nil(t, l.tail)
	})

	t.Run("cancel after broadcast reports the wakeup", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()
		l.broadcast()

		assert.False(t, l.cancel(w))
		assert.Equal(t, waiterBroadcasted, w.state)
	})

	t.Run("wait with timeout expires", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()

		assert.False(t, w.waitTimeout(5*time.Millisecond))
		assert.Nil(t, l.head)
	})

	t.Run("wait with timeout returns on broadcast", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()
		l.broadcast()

		assert.True(t, w.waitTimeout(10*time.Minute))
	})

	t.Run("wait with cancelled context", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, context.Canceled, w.waitContext(ctx))
		assert.Nil(t, l.head)
	})

	t.Run("wait with context returns nil on broadcast", func(t *testing.T) {
		var l waitlist
		w := l.enqueue()
		l.broadcast()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, w.waitContext(ctx))
	})
}
