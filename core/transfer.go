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
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"adnl/message"
)

// Transfer error codes
var (
	ErrTransferPartOutOfRange = errors.New("transfer part out of range")
	ErrTransferPartTooBig     = errors.New("transfer part too big")
	ErrTransferBadHash        = errors.New("transfer hash mismatch")
)

// TransferID keys a reassembly by the hash of the full serialized
// message.
type TransferID [32]byte

// span is a received byte range [lo,hi).
type span struct {
	lo, hi int
}

// Transfer collects the fragments of a split message. Fragments may
// arrive out of order and duplicated; the buffer is complete once the
// received ranges cover it entirely.
type Transfer struct {
	mtx       sync.Mutex
	totalSize int
	buffer    []byte
	parts     []span // received ranges, sorted and coalesced
	updatedAt int64  // atomic; last fragment arrival (Unix seconds)
}

// NewTransfer starts a reassembly of the given total size.
func NewTransfer(totalSize int) *Transfer {
	t := &Transfer{
		totalSize: totalSize,
		buffer:    make([]byte, totalSize),
	}
	t.Refresh()
	return t
}

// Refresh timestamps fragment arrival for the janitor.
func (t *Transfer) Refresh() {
	atomic.StoreInt64(&t.updatedAt, time.Now().Unix())
}

// Expired returns true if no fragment arrived for 'timeout' seconds.
func (t *Transfer) Expired(timeout int32) bool {
	return time.Now().Unix() >= atomic.LoadInt64(&t.updatedAt)+int64(timeout)
}

// AddPart merges one fragment. When the buffer is complete it is
// checked against the transfer id and returned; nil data means more
// fragments are pending. Errors invalidate the whole transfer.
func (t *Transfer) AddPart(offset int, data []byte, id TransferID) ([]byte, error) {
	if len(data) > message.MaxMessageSize {
		return nil, ErrTransferPartTooBig
	}
	if offset < 0 || offset+len(data) > t.totalSize {
		return nil, ErrTransferPartOutOfRange
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()

	copy(t.buffer[offset:], data)
	t.merge(span{offset, offset + len(data)})

	if len(t.parts) != 1 || t.parts[0].lo != 0 || t.parts[0].hi != t.totalSize {
		return nil, nil
	}
	if digest := sha256.Sum256(t.buffer); !bytes.Equal(digest[:], id[:]) {
		return nil, ErrTransferBadHash
	}
	return t.buffer, nil
}

// merge unions a range into the sorted span list.
func (t *Transfer) merge(s span) {
	res := make([]span, 0, len(t.parts)+1)
	inserted := false
	for _, p := range t.parts {
		switch {
		case p.hi < s.lo:
			res = append(res, p)
		case s.hi < p.lo:
			if !inserted {
				res = append(res, s)
				inserted = true
			}
			res = append(res, p)
		default:
			// overlapping or adjacent: grow s
			if p.lo < s.lo {
				s.lo = p.lo
			}
			if p.hi > s.hi {
				s.hi = p.hi
			}
		}
	}
	if !inserted {
		res = append(res, s)
	}
	t.parts = res
}
