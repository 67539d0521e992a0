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
	"bytes"
	"errors"
	"testing"

	"adnl/crypto"
	"adnl/util"
)

func samplePacket(t *testing.T, key *crypto.StoredKey) *PacketContents {
	t.Helper()
	addr, err := util.ParseAddress("10.0.0.1:30303")
	if err != nil {
		t.Fatal(err)
	}
	seqno := uint64(17)
	confirm := uint64(4)
	p := NewPacketContents()
	p.From = key.FullID()
	p.Messages = []Message{
		&CreateChannel{Key: [32]byte{1, 2, 3}, Date: 1700000000},
		&Custom{Data: []byte("payload")},
	}
	p.Address = &AddressList{
		Addrs:      []*util.Address{addr},
		Version:    1700000000,
		ReinitDate: 1690000000,
		ExpireAt:   1700001000,
	}
	p.Seqno = &seqno
	p.ConfirmSeqno = &confirm
	p.ReinitDates = &ReinitDates{Local: 1690000000, Target: 0}
	return p
}

func TestPacketRoundTrip(t *testing.T) {
	key := crypto.NewRandomStoredKey()
	p := samplePacket(t, key)
	if err := p.Sign(key); err != nil {
		t.Fatal(err)
	}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	q, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if q.From == nil || !bytes.Equal(q.From.Bytes(), key.FullID().Bytes()) {
		t.Fatal("sender key mismatch")
	}
	if len(q.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(q.Messages))
	}
	cc, ok := q.Messages[0].(*CreateChannel)
	if !ok || cc.Date != 1700000000 {
		t.Fatal("create-channel message mismatch")
	}
	cm, ok := q.Messages[1].(*Custom)
	if !ok || !bytes.Equal(cm.Data, []byte("payload")) {
		t.Fatal("custom message mismatch")
	}
	if q.Seqno == nil || *q.Seqno != 17 {
		t.Fatal("seqno mismatch")
	}
	if q.ConfirmSeqno == nil || *q.ConfirmSeqno != 4 {
		t.Fatal("confirm seqno mismatch")
	}
	if q.Address == nil || q.Address.BestAddr().String() != "10.0.0.1:30303" {
		t.Fatal("address mismatch")
	}
	if q.ReinitDates == nil || q.ReinitDates.Local != 1690000000 || q.ReinitDates.Target != 0 {
		t.Fatal("reinit dates mismatch")
	}
	// re-serialization is byte-faithful (needed for signatures)
	data2, err := q.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, data2) {
		t.Fatal("re-serialization differs")
	}
}

func TestPacketSignature(t *testing.T) {
	key := crypto.NewRandomStoredKey()
	p := samplePacket(t, key)
	if err := p.Sign(key); err != nil {
		t.Fatal(err)
	}
	data, _ := p.MarshalBinary()
	q, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if err = q.VerifySignature(key.FullID()); err != nil {
		t.Fatal(err)
	}
	// wrong key fails
	other := crypto.NewRandomStoredKey()
	if err = q.VerifySignature(other.FullID()); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	// missing signature is its own error
	q.Signature = nil
	if err = q.VerifySignature(key.FullID()); !errors.Is(err, ErrSignatureNotFound) {
		t.Fatalf("expected missing-signature error, got %v", err)
	}
}

func TestPacketSingleMessage(t *testing.T) {
	p := NewPacketContents()
	seqno := uint64(1)
	p.Messages = []Message{&Nop{}}
	p.Seqno = &seqno

	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	q, err := DecodePacket(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Messages) != 1 {
		t.Fatal("single message lost")
	}
	if _, ok := q.Messages[0].(*Nop); !ok {
		t.Fatal("wrong message kind")
	}
}

func TestPacketGarbage(t *testing.T) {
	if _, err := DecodePacket([]byte("not a packet at all")); err == nil {
		t.Fatal("garbage accepted")
	}
	if _, err := DecodePacket(nil); err == nil {
		t.Fatal("empty data accepted")
	}
}

func TestMessageSizes(t *testing.T) {
	msgs := []Message{
		&Nop{},
		&CreateChannel{},
		&ConfirmChannel{},
		&Custom{Data: util.NewRndArray(100)},
		&Query{Query: util.NewRndArray(300)},
		&Answer{Answer: util.NewRndArray(5)},
		&Part{Data: util.NewRndArray(700)},
	}
	for _, m := range msgs {
		if got := len(EncodeMessage(m)); got != m.Size() {
			t.Fatalf("%s: size %d != encoded %d", m, m.Size(), got)
		}
	}
}
