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

package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func TestShortID(t *testing.T) {
	key := NewRandomStoredKey()

	// short id is the hash of the wire-tagged public key
	tag := crc32.ChecksumIEEE([]byte("pub.ed25519 key:int256 = PublicKey"))
	buf := make([]byte, 36)
	binary.LittleEndian.PutUint32(buf[:4], tag)
	copy(buf[4:], key.FullID().Bytes())
	expected := sha256.Sum256(buf)

	if key.ID() != ShortID(expected) {
		t.Fatal("short id mismatch")
	}
	// derivation is deterministic
	if key.FullID().Short() != key.ID() {
		t.Fatal("short id not deterministic")
	}
}

func TestShortIDDistinct(t *testing.T) {
	seen := make(map[ShortID]bool)
	for i := 0; i < 100; i++ {
		id := NewRandomStoredKey().ID()
		if seen[id] {
			t.Fatal("short id collision")
		}
		seen[id] = true
	}
}

func TestSignVerify(t *testing.T) {
	key := NewRandomStoredKey()
	msg := []byte("the quick brown fox jumps over the lazy dog")

	sig := key.Sign(msg)
	if !key.FullID().Verify(msg, sig) {
		t.Fatal("signature verification failed")
	}
	msg[0] ^= 1
	if key.FullID().Verify(msg, sig) {
		t.Fatal("signature verified for modified message")
	}
	if key.FullID().Verify(msg, sig[:32]) {
		t.Fatal("signature verified with truncated signature")
	}
}

func TestStoredKeyFromSeed(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	k1, err := NewStoredKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := NewStoredKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	if k1.ID() != k2.ID() {
		t.Fatal("seed-derived keys differ")
	}
	if !bytes.Equal(k1.FullID().Bytes(), k2.FullID().Bytes()) {
		t.Fatal("seed-derived public keys differ")
	}
	if _, err = NewStoredKeyFromSeed(seed[:16]); err == nil {
		t.Fatal("short seed accepted")
	}
}
