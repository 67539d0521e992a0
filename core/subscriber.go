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
	"adnl/crypto"
	"adnl/message"
	"adnl/util"
)

//----------------------------------------------------------------------
// Subscriber plug-in interface
//----------------------------------------------------------------------

// QueryResult is a subscriber's verdict on a query: not consumed (try
// the next subscriber), consumed without an answer, or consumed with
// an answer to send back.
type QueryResult struct {
	Consumed bool
	Answer   []byte
}

// Subscriber handles custom messages and queries dispatched by the
// packet pipeline. Handlers run inside the per-packet routine.
type Subscriber interface {
	// OnCustom processes an application datagram; returns true if
	// the message was consumed.
	OnCustom(localID, peerID crypto.ShortID, data []byte) (bool, error)

	// OnQuery processes a query.
	OnQuery(localID, peerID crypto.ShortID, query []byte) (*QueryResult, error)
}

//----------------------------------------------------------------------
// Node filter
//----------------------------------------------------------------------

// FilterContext tells a node filter which layer asks for admission.
type FilterContext int

const (
	FilterAdnlPacket FilterContext = iota
	FilterDht
	FilterPublicOverlay
	FilterPrivateOverlay
)

// NodeFilter gates the admission of new peers.
type NodeFilter interface {
	Check(fctx FilterContext, addr *util.Address, peerID crypto.ShortID) bool
}

//----------------------------------------------------------------------
// Built-in ping responder
//----------------------------------------------------------------------

// Ping query tags.
var (
	TagPing = message.TagOf("adnl.ping value:long = adnl.Pong")
	TagPong = message.TagOf("adnl.pong value:long = adnl.Pong")
)

// PingSubscriber answers ping queries; it is registered on every node.
type PingSubscriber struct{}

// OnCustom ignores custom messages.
func (s *PingSubscriber) OnCustom(localID, peerID crypto.ShortID, data []byte) (bool, error) {
	return false, nil
}

// OnQuery answers an adnl.ping with the matching adnl.pong.
func (s *PingSubscriber) OnQuery(localID, peerID crypto.ShortID, query []byte) (*QueryResult, error) {
	r := message.NewReader(query)
	tag, err := r.ReadU32()
	if err != nil || tag != TagPing {
		return &QueryResult{}, nil
	}
	value, err := r.ReadU64()
	if err != nil || r.Remaining() != 0 {
		return &QueryResult{}, nil
	}
	w := new(message.Writer)
	w.WriteU32(TagPong)
	w.WriteU64(value)
	return &QueryResult{
		Consumed: true,
		Answer:   w.Bytes(),
	}, nil
}
