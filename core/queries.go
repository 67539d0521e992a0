// This file is part of adnl-go, an implementation of the Abstract
// Datagram Network Layer in Golang.
// Copyright (C) 2023 Bernd Fix  >Y<
//
// adnl-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// adnl-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package core

import (
	"context"
	"sync/atomic"

	"adnl/util"
)

// QueryID correlates a query with its answer.
type QueryID [32]byte

// query states
const (
	querySent int32 = iota
	queryAnswered
	queryDropped
)

// PendingQuery is the waiter handle of an in-flight query. Exactly one
// of answer or drop is observed; later updates are no-ops.
type PendingQuery struct {
	state  int32
	result chan []byte
}

// Wait blocks until the query is answered (data), dropped (nil) or the
// context ends.
func (q *PendingQuery) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case answer := <-q.result:
		return answer, nil
	}
}

//----------------------------------------------------------------------

// QueriesCache correlates query ids with pending waiters.
type QueriesCache struct {
	queries *util.Map[QueryID, *PendingQuery]
}

// NewQueriesCache creates an empty registry.
func NewQueriesCache() *QueriesCache {
	return &QueriesCache{
		queries: util.NewMap[QueryID, *PendingQuery](),
	}
}

// AddQuery registers a waiter for a query id.
func (qc *QueriesCache) AddQuery(id QueryID) *PendingQuery {
	q := &PendingQuery{
		state:  querySent,
		result: make(chan []byte, 1),
	}
	qc.queries.Put(id, q)
	return q
}

// UpdateQuery completes (answer != nil) or drops (answer == nil) a
// pending query. Returns true on the first transition only; unknown or
// already-completed ids return false.
func (qc *QueriesCache) UpdateQuery(id QueryID, answer []byte) bool {
	q, ok := qc.queries.Delete(id)
	if !ok {
		return false
	}
	next := queryAnswered
	if answer == nil {
		next = queryDropped
	}
	if !atomic.CompareAndSwapInt32(&q.state, querySent, next) {
		return false
	}
	q.result <- answer
	return true
}

// Size returns the number of in-flight queries.
func (qc *QueriesCache) Size() int {
	return qc.queries.Size()
}
