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
	"bytes"
	"context"
	"testing"
	"time"

	"adnl/util"
)

func TestQueryAnswered(t *testing.T) {
	qc := NewQueriesCache()
	var id QueryID
	util.RndArray(id[:])

	pending := qc.AddQuery(id)
	if qc.Size() != 1 {
		t.Fatal("query not registered")
	}
	if !qc.UpdateQuery(id, []byte("answer")) {
		t.Fatal("first update rejected")
	}
	// any further update is a no-op
	if qc.UpdateQuery(id, []byte("other")) {
		t.Fatal("second update accepted")
	}
	if qc.UpdateQuery(id, nil) {
		t.Fatal("drop after answer accepted")
	}

	answer, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(answer, []byte("answer")) {
		t.Fatal("wrong answer")
	}
	if qc.Size() != 0 {
		t.Fatal("completed query still registered")
	}
}

func TestQueryDropped(t *testing.T) {
	qc := NewQueriesCache()
	var id QueryID
	util.RndArray(id[:])

	pending := qc.AddQuery(id)
	if !qc.UpdateQuery(id, nil) {
		t.Fatal("drop rejected")
	}
	answer, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if answer != nil {
		t.Fatal("dropped query yielded an answer")
	}
}

func TestQueryUnknown(t *testing.T) {
	qc := NewQueriesCache()
	var id QueryID
	util.RndArray(id[:])

	if qc.UpdateQuery(id, []byte("answer")) {
		t.Fatal("unknown query updated")
	}
}

func TestQueryWaitCancel(t *testing.T) {
	qc := NewQueriesCache()
	var id QueryID
	util.RndArray(id[:])

	pending := qc.AddQuery(id)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pending.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
