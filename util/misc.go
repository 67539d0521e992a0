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

package util

import (
	"sync/atomic"
	"time"
)

// Clone creates a new array of same content as the argument.
func Clone(d []byte) []byte {
	r := make([]byte, len(d))
	copy(r, d)
	return r
}

// Reverse the content of a byte array.
func Reverse(b []byte) []byte {
	bl := len(b)
	r := make([]byte, bl)
	for i := 0; i < bl; i++ {
		r[i] = b[bl-i-1]
	}
	return r
}

//----------------------------------------------------------------------

var _id int64

// NextID returns the next unique identifier (unique in the running
// process/application only).
func NextID() int {
	return int(atomic.AddInt64(&_id, 1))
}

//----------------------------------------------------------------------

// Now returns the current time in Unix epoch seconds as used in packet
// timings (reinit dates, address list versions, drop timeouts).
func Now() int32 {
	return int32(time.Now().Unix())
}
