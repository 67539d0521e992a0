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
	"crypto/aes"
	"crypto/cipher"
)

// Packet bodies (handshake and channel framing alike) are encrypted
// with AES-CTR. Key and IV are derived from the shared secret and the
// SHA-256 checksum of the plaintext body:
//
//	key = secret[0:16] XOR checksum[0:16]
//	IV  = secret[16:32] XOR checksum[16:32]

// PacketCipher builds the stream cipher for one packet body.
func PacketCipher(secret, checksum *[32]byte) (cipher.Stream, error) {
	var key, iv [16]byte
	for i := 0; i < 16; i++ {
		key[i] = secret[i] ^ checksum[i]
		iv[i] = secret[16+i] ^ checksum[16+i]
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv[:]), nil
}

// ApplyPacketCipher encrypts or decrypts a packet body in place.
func ApplyPacketCipher(secret, checksum *[32]byte, body []byte) error {
	stream, err := PacketCipher(secret, checksum)
	if err != nil {
		return err
	}
	stream.XORKeyStream(body, body)
	return nil
}
