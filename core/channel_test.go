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
	"testing"

	"adnl/crypto"
	"adnl/util"
)

// build the two half-channels of a peer pair
func makeChannelPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	aID := crypto.NewRandomStoredKey().ID()
	bID := crypto.NewRandomStoredKey().ID()
	aKey := crypto.NewKeyPair()
	bKey := crypto.NewKeyPair()
	date := util.Now()

	a, err := NewChannel(aID, bID, aKey, bKey.Public(), date, ContextCreateChannel)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewChannel(bID, aID, bKey, aKey.Public(), date, ContextConfirmChannel)
	if err != nil {
		t.Fatal(err)
	}
	return a, b
}

func TestChannelSymmetry(t *testing.T) {
	a, b := makeChannelPair(t)

	// out-ids on one side are in-ids on the other
	if a.ordinary.outID != b.OrdinaryInID() || b.ordinary.outID != a.OrdinaryInID() {
		t.Fatal("ordinary channel ids do not match")
	}
	if a.priority.outID != b.PriorityInID() || b.priority.outID != a.PriorityInID() {
		t.Fatal("priority channel ids do not match")
	}
	// sub-channels use distinct ids
	ids := map[ChannelID]bool{
		a.OrdinaryInID(): true,
		a.PriorityInID(): true,
		b.OrdinaryInID(): true,
		b.PriorityInID(): true,
	}
	if len(ids) != 4 {
		t.Fatal("sub-channel ids collide")
	}
}

func TestChannelRoundTrip(t *testing.T) {
	a, b := makeChannelPair(t)

	for _, priority := range []bool{false, true} {
		body := util.NewRndArray(321)
		enc, err := a.Encrypt(util.Clone(body), priority)
		if err != nil {
			t.Fatal(err)
		}
		dec, err := b.Decrypt(enc, priority)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dec, body) {
			t.Fatal("decrypted body mismatch")
		}
		// and the reverse direction
		enc, err = b.Encrypt(util.Clone(body), priority)
		if err != nil {
			t.Fatal(err)
		}
		if dec, err = a.Decrypt(enc, priority); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dec, body) {
			t.Fatal("decrypted body mismatch (reverse)")
		}
	}
}

func TestChannelBadFrames(t *testing.T) {
	a, b := makeChannelPair(t)

	if _, err := b.Decrypt(make([]byte, 63), false); err != ErrChannelPacketTooShort {
		t.Fatalf("expected short-frame error, got %v", err)
	}
	enc, err := a.Encrypt([]byte("payload"), false)
	if err != nil {
		t.Fatal(err)
	}
	enc[70] ^= 1
	if _, err = b.Decrypt(enc, false); err != ErrChannelPacketBadDigest {
		t.Fatalf("expected digest error, got %v", err)
	}
	// wrong priority class means wrong key material
	enc, _ = a.Encrypt([]byte("payload"), false)
	if _, err = b.Decrypt(enc, true); err != ErrChannelPacketBadDigest {
		t.Fatalf("expected digest error on class mismatch, got %v", err)
	}
}

func TestChannelReadiness(t *testing.T) {
	a, b := makeChannelPair(t)

	// creating side waits for traffic; confirming side is ready
	if a.Ready() {
		t.Fatal("create-context channel born ready")
	}
	if !b.Ready() {
		t.Fatal("confirm-context channel not ready")
	}
	a.SetReady()
	if !a.Ready() {
		t.Fatal("channel not ready after SetReady")
	}
}

func TestChannelValidity(t *testing.T) {
	a, _ := makeChannelPair(t)

	if !a.IsStillValid(a.PeerChannelKey(), a.PeerChannelDate()) {
		t.Fatal("channel invalid for its own parameters")
	}
	var other [32]byte
	util.RndArray(other[:])
	if a.IsStillValid(other, a.PeerChannelDate()) {
		t.Fatal("channel valid for foreign key")
	}
	if a.IsStillValid(a.PeerChannelKey(), a.PeerChannelDate()+1) {
		t.Fatal("channel valid for different date")
	}
}

func TestChannelDropTimeout(t *testing.T) {
	a, _ := makeChannelPair(t)
	now := util.Now()

	// first arm: previous value is zero
	if was := a.UpdateDropTimeout(now, 5); was != 0 {
		t.Fatalf("expected unarmed timeout, got %d", was)
	}
	// second arm: previous deadline is returned
	if was := a.UpdateDropTimeout(now, 5); was != now+5 {
		t.Fatalf("expected armed deadline, got %d", was)
	}
	a.ResetDropTimeout()
	if was := a.UpdateDropTimeout(now, 5); was != 0 {
		t.Fatalf("expected cleared timeout, got %d", was)
	}
}
