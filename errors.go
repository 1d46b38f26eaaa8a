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

import "errors"

var (
	// ErrBroken is matched (via errors.Is) by the error every operation
	// reports once a completion action has failed. The reported error also
	// carries the phase and the action's failure message.
	ErrBroken = errors.New("barrier is broken")

	// ErrWaitTimeout is reported by WaitTimeout when the phase did not
	// complete within the configured duration.
	ErrWaitTimeout = errors.New("timeout waiting for the phase to complete")

	// ErrNegativeCount is matched by the error NewBarrier reports for a
	// negative participant count.
	ErrNegativeCount = errors.New("negative participant count")

	// ErrInvalidUpdate is matched by the errors reported for an arrival
	// update outside the pending count, or a drop on a barrier without
	// participants.
	ErrInvalidUpdate = errors.New("invalid arrival update")
)
