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
	"crypto/ed25519"
	"crypto/sha512"

	"adnl/util"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// Handshakes run X25519 between an ephemeral key and the long-term
// Ed25519 node key of the peer. The Ed25519 halves are mapped to
// Curve25519: the private scalar by hash-and-clamp of the seed, the
// public key by the birational Edwards-to-Montgomery conversion.

// edScalar derives the X25519 scalar of an Ed25519 signing key.
func edScalar(prv ed25519.PrivateKey) (scalar [32]byte) {
	h := sha512.Sum512(prv.Seed())
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return
}

// edPublicToX25519 converts an Ed25519 verification key to its
// Montgomery form.
func edPublicToX25519(pub ed25519.PublicKey) (res [32]byte, err error) {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return
	}
	copy(res[:], p.BytesMontgomery())
	return
}

// SharedSecret computes the X25519 shared secret between a local
// Ed25519 signing key and a remote ephemeral X25519 public key.
func SharedSecret(key *StoredKey, ephemeral [32]byte) (secret [32]byte, err error) {
	ss, err := curve25519.X25519(key.scalar[:], ephemeral[:])
	if err != nil {
		return
	}
	copy(secret[:], ss)
	return
}

// SharedSecretWithKey computes the X25519 shared secret between a local
// ephemeral X25519 key and a remote Ed25519 verification key.
func SharedSecretWithKey(ephemeral *KeyPair, peer *FullID) (secret [32]byte, err error) {
	mont, err := edPublicToX25519(peer.PublicKey())
	if err != nil {
		return
	}
	return ephemeral.Shared(mont)
}

// RndScalar fills a buffer with a random clamped X25519 scalar.
func RndScalar(scalar *[32]byte) {
	util.RndArray(scalar[:])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

//----------------------------------------------------------------------
// Ephemeral X25519 key pair
//----------------------------------------------------------------------

// KeyPair is an ephemeral X25519 key pair used for handshake envelopes
// and channel establishment.
type KeyPair struct {
	prv [32]byte
	pub [32]byte
}

// NewKeyPair generates a random X25519 key pair.
func NewKeyPair() *KeyPair {
	kp := new(KeyPair)
	RndScalar(&kp.prv)
	pub, _ := curve25519.X25519(kp.prv[:], curve25519.Basepoint)
	copy(kp.pub[:], pub)
	return kp
}

// Public returns the public half of the pair.
func (kp *KeyPair) Public() [32]byte {
	return kp.pub
}

// Shared computes the X25519 shared secret with a peer public key.
func (kp *KeyPair) Shared(peer [32]byte) (secret [32]byte, err error) {
	ss, err := curve25519.X25519(kp.prv[:], peer[:])
	if err != nil {
		return
	}
	copy(secret[:], ss)
	return
}
