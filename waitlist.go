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
	"sync"
	"time"
)

// doneContext is the subset of context.Context the waitlist needs for
// cancellable waits.
type doneContext interface {
	Done() <-chan struct{}
	Err() error
}

// waitlist tracks the goroutines parked until the running phase completes.
// Waiters form an intrusive ring, so a timed-out or cancelled waiter can
// unlink itself without touching the others. A phase transition always wakes
// all waiters at once; there is no notify-one path.
type waitlist struct {
	mu         sync.Mutex
	head, tail *waiter
}

type waiter struct {
	list       *waitlist
	next, prev *waiter

	state waiterState
	ready chan struct{}
}

type waiterState int

const (
	waiterActive waiterState = iota
	waiterBroadcasted
	waiterCancelled
)

func (l *waitlist) enqueue() *waiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := &waiter{list: l, ready: make(chan struct{})}
	if l.tail == nil {
		l.head, l.tail = w, w
		w.next, w.prev = w, w
	} else {
		w.prev, w.next = l.tail, l.head
		l.tail.next, l.head.prev = w, w
		l.tail = w
	}
	return w
}

// broadcast wakes every parked waiter and empties the list.
func (l *waitlist) broadcast() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.head == nil {
		return
	}

	l.tail.next = nil
	for w := l.head; w != nil; w = w.next {
		if w.state != waiterActive {
			panic("non active waiter in list")
		}

		w.state = waiterBroadcasted
		close(w.ready)
	}
	l.head, l.tail = nil, nil
}

// cancel removes a still parked waiter from the list. It returns false if
// the waiter already lost the race against a broadcast, in which case the
// caller has been woken regularly.
func (l *waitlist) cancel(w *waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w.state != waiterActive {
		return false
	}

	// remove from list
	if w.next == w {
		l.head, l.tail = nil, nil
	} else {
		w.next.prev = w.prev
		w.prev.next = w.next
		if l.tail == w {
			l.tail = w.prev
		}
		if l.head == w {
			l.head = w.next
		}
	}

	w.state = waiterCancelled
	close(w.ready)
	return true
}

func (w *waiter) wait() {
	<-w.ready
}

func (w *waiter) waitTimeout(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	select {
	case <-w.ready:
		timer.Stop()
		return true
	case <-timer.C:
		return !w.list.cancel(w)
	}
}

func (w *waiter) waitContext(context doneContext) error {
	select {
	case <-w.ready:
		return nil
	case <-context.Done():
		if !w.list.cancel(w) {
			// broadcast won the race, report the regular wakeup
			return nil
		}
		return context.Err()
	}
}
