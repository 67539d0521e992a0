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
	"errors"
)

// Handshake error codes
var (
	ErrBadHandshakeLength   = errors.New("bad handshake packet length")
	ErrBadHandshakeChecksum = errors.New("bad handshake packet checksum")
)

// HandshakeHeaderSize is the length of the outer envelope prefix used
// before a channel exists:
//
//	[0..32]   peer short id (intended recipient)
//	[32..64]  sender ephemeral X25519 public key
//	[64..96]  sha256 of the plaintext body
//	[96..]    AES-CTR encrypted body
const HandshakeHeaderSize = 96

// BuildHandshakePacket wraps a serialized packet body into the outer
// handshake envelope for the given recipient. A fresh ephemeral key is
// generated per packet.
func BuildHandshakePacket(peerID ShortID, peerFullID *FullID, body []byte) ([]byte, error) {
	ephemeral := NewKeyPair()
	checksum := sha256.Sum256(body)

	secret, err := SharedSecretWithKey(ephemeral, peerFullID)
	if err != nil {
		return nil, err
	}
	buffer := make([]byte, HandshakeHeaderSize+len(body))
	copy(buffer[:32], peerID[:])
	pub := ephemeral.Public()
	copy(buffer[32:64], pub[:])
	copy(buffer[64:96], checksum[:])
	copy(buffer[96:], body)

	if err = ApplyPacketCipher(&secret, &checksum, buffer[96:]); err != nil {
		return nil, err
	}
	return buffer, nil
}

// ParseHandshakePacket attempts to decode a datagram as a handshake
// envelope addressed to one of the stored local keys. On success the
// decrypted body (a slice into the passed buffer, which is modified in
// place) and the matched local id are returned. If no local key
// matches, ok is false without an error: the datagram may be addressed
// to a channel instead.
func ParseHandshakePacket(keys *KeyStore, buffer []byte) (id ShortID, body []byte, ok bool, err error) {
	if len(buffer) < HandshakeHeaderSize {
		err = ErrBadHandshakeLength
		return
	}
	// there are few local keys; linear search is fine
	var local *StoredKey
	_ = keys.ProcessRange(func(keyID ShortID, key *StoredKey) error {
		if local == nil && bytes.Equal(keyID[:], buffer[:32]) {
			local = key
		}
		return nil
	})
	if local == nil {
		return
	}

	var ephemeral [32]byte
	copy(ephemeral[:], buffer[32:64])
	var secret [32]byte
	if secret, err = SharedSecret(local, ephemeral); err != nil {
		return
	}
	var checksum [32]byte
	copy(checksum[:], buffer[64:96])
	if err = ApplyPacketCipher(&secret, &checksum, buffer[96:]); err != nil {
		return
	}
	if digest := sha256.Sum256(buffer[96:]); !bytes.Equal(digest[:], checksum[:]) {
		err = ErrBadHandshakeChecksum
		return
	}
	return local.ID(), buffer[96:], true, nil
}
