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

package message

import (
	"errors"
	"fmt"
)

// Message error codes
var (
	ErrUnknownMessage = errors.New("unknown message")
)

// MaxMessageSize is the MTU contract: a single serialized message
// larger than this is sent as Part fragments instead.
const MaxMessageSize = 1024

// Message constructor tags.
var (
	TagNop            = TagOf("adnl.message.nop = adnl.Message")
	TagCreateChannel  = TagOf("adnl.message.createChannel key:int256 date:int = adnl.Message")
	TagConfirmChannel = TagOf("adnl.message.confirmChannel key:int256 peer_key:int256 date:int = adnl.Message")
	TagCustom         = TagOf("adnl.message.custom data:bytes = adnl.Message")
	TagQuery          = TagOf("adnl.message.query query_id:int256 query:bytes = adnl.Message")
	TagAnswer         = TagOf("adnl.message.answer query_id:int256 answer:bytes = adnl.Message")
	TagPart           = TagOf("adnl.message.part hash:int256 total_size:int offset:int data:bytes = adnl.Message")
)

// Message is the interface for the inner message kinds carried in a
// packet.
type Message interface {
	// Size returns the exact serialized size in bytes
	Size() int

	// Encode writes the boxed serialization
	Encode(w *Writer)

	// String returns the message in human-readable form
	String() string
}

//----------------------------------------------------------------------

// Nop does nothing; used to prod a peer into answering with fresh
// packet metadata.
type Nop struct{}

func (m *Nop) Size() int        { return 4 }
func (m *Nop) Encode(w *Writer) { w.WriteU32(TagNop) }
func (m *Nop) String() string   { return "Nop{}" }

//----------------------------------------------------------------------

// CreateChannel announces the local half of a new channel key pair.
type CreateChannel struct {
	Key  [32]byte // local ephemeral X25519 public key
	Date int32    // channel creation date
}

func (m *CreateChannel) Size() int {
	return 4 + 32 + 4
}

func (m *CreateChannel) Encode(w *Writer) {
	w.WriteU32(TagCreateChannel)
	w.WriteInt256(m.Key)
	w.WriteI32(m.Date)
}

func (m *CreateChannel) String() string {
	return fmt.Sprintf("CreateChannel{date=%d}", m.Date)
}

//----------------------------------------------------------------------

// ConfirmChannel echoes both channel key halves back to the initiator.
type ConfirmChannel struct {
	Key     [32]byte // confirming sender's own ephemeral X25519 public key
	PeerKey [32]byte // initiator's ephemeral X25519 public key (echoed)
	Date    int32    // channel creation date (as announced)
}

func (m *ConfirmChannel) Size() int {
	return 4 + 64 + 4
}

func (m *ConfirmChannel) Encode(w *Writer) {
	w.WriteU32(TagConfirmChannel)
	w.WriteInt256(m.Key)
	w.WriteInt256(m.PeerKey)
	w.WriteI32(m.Date)
}

func (m *ConfirmChannel) String() string {
	return fmt.Sprintf("ConfirmChannel{date=%d}", m.Date)
}

//----------------------------------------------------------------------

// Custom carries an opaque application datagram.
type Custom struct {
	Data []byte
}

func (m *Custom) Size() int {
	return 4 + bytesSize(len(m.Data))
}

func (m *Custom) Encode(w *Writer) {
	w.WriteU32(TagCustom)
	w.WriteBytes(m.Data)
}

func (m *Custom) String() string {
	return fmt.Sprintf("Custom{%d bytes}", len(m.Data))
}

//----------------------------------------------------------------------

// Query asks a remote subscriber for an answer correlated by query id.
type Query struct {
	QueryID [32]byte
	Query   []byte
}

func (m *Query) Size() int {
	return 4 + 32 + bytesSize(len(m.Query))
}

func (m *Query) Encode(w *Writer) {
	w.WriteU32(TagQuery)
	w.WriteInt256(m.QueryID)
	w.WriteBytes(m.Query)
}

func (m *Query) String() string {
	return fmt.Sprintf("Query{%d bytes}", len(m.Query))
}

//----------------------------------------------------------------------

// Answer completes a pending query.
type Answer struct {
	QueryID [32]byte
	Answer  []byte
}

func (m *Answer) Size() int {
	return 4 + 32 + bytesSize(len(m.Answer))
}

func (m *Answer) Encode(w *Writer) {
	w.WriteU32(TagAnswer)
	w.WriteInt256(m.QueryID)
	w.WriteBytes(m.Answer)
}

func (m *Answer) String() string {
	return fmt.Sprintf("Answer{%d bytes}", len(m.Answer))
}

//----------------------------------------------------------------------

// Part is one fragment of a message whose serialization exceeds
// MaxMessageSize; fragments share the hash of the whole serialized
// message.
type Part struct {
	Hash      [32]byte
	TotalSize int32
	Offset    int32
	Data      []byte
}

func (m *Part) Size() int {
	return 4 + 32 + 4 + 4 + bytesSize(len(m.Data))
}

func (m *Part) Encode(w *Writer) {
	w.WriteU32(TagPart)
	w.WriteInt256(m.Hash)
	w.WriteI32(m.TotalSize)
	w.WriteI32(m.Offset)
	w.WriteBytes(m.Data)
}

func (m *Part) String() string {
	return fmt.Sprintf("Part{offset=%d,total=%d}", m.Offset, m.TotalSize)
}

//----------------------------------------------------------------------
// Codec
//----------------------------------------------------------------------

// EncodeMessage returns the boxed serialization of a single message.
func EncodeMessage(m Message) []byte {
	w := new(Writer)
	m.Encode(w)
	return w.Bytes()
}

// DecodeMessage parses a single message from data; trailing bytes are
// rejected.
func DecodeMessage(data []byte) (Message, error) {
	r := NewReader(data)
	m, err := readMessage(r)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, ErrBadEncoding
	}
	return m, nil
}

// readMessage parses one boxed message from the reader.
func readMessage(r *Reader) (m Message, err error) {
	tag, err := r.ReadU32()
	if err != nil {
		return
	}
	switch tag {
	case TagNop:
		m = &Nop{}

	case TagCreateChannel:
		msg := new(CreateChannel)
		if msg.Key, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.Date, err = r.ReadI32(); err != nil {
			return
		}
		m = msg

	case TagConfirmChannel:
		msg := new(ConfirmChannel)
		if msg.Key, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.PeerKey, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.Date, err = r.ReadI32(); err != nil {
			return
		}
		m = msg

	case TagCustom:
		msg := new(Custom)
		if msg.Data, err = r.ReadBytes(); err != nil {
			return
		}
		m = msg

	case TagQuery:
		msg := new(Query)
		if msg.QueryID, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.Query, err = r.ReadBytes(); err != nil {
			return
		}
		m = msg

	case TagAnswer:
		msg := new(Answer)
		if msg.QueryID, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.Answer, err = r.ReadBytes(); err != nil {
			return
		}
		m = msg

	case TagPart:
		msg := new(Part)
		if msg.Hash, err = r.ReadInt256(); err != nil {
			return
		}
		if msg.TotalSize, err = r.ReadI32(); err != nil {
			return
		}
		if msg.Offset, err = r.ReadI32(); err != nil {
			return
		}
		if msg.Data, err = r.ReadBytes(); err != nil {
			return
		}
		m = msg

	default:
		err = ErrUnknownMessage
	}
	return
}
