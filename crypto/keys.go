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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash/crc32"
)

// Error codes
var (
	ErrInvalidSeedSize = errors.New("invalid private seed size")
	ErrInvalidKeySize  = errors.New("invalid public key size")
)

// TL constructor tag of a wire-encoded Ed25519 public key. Short node
// ids are hashes over this tagged encoding.
var keyTagEd25519 = crc32.ChecksumIEEE([]byte("pub.ed25519 key:int256 = PublicKey"))

//----------------------------------------------------------------------
// Short node id
//----------------------------------------------------------------------

// ShortID is the 32-byte identifier of a node key: the SHA-256 hash of
// the wire-tagged Ed25519 public key. Stable, comparable and usable as
// a map key.
type ShortID [32]byte

// NewShortID creates a short id from raw data (up to 32 bytes used).
func NewShortID(data []byte) (id ShortID) {
	copy(id[:], data)
	return
}

// IsZero returns true for an unset id.
func (id ShortID) IsZero() bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of a short id.
func (id ShortID) String() string {
	return hex.EncodeToString(id[:])
}

//----------------------------------------------------------------------
// Full node id
//----------------------------------------------------------------------

// FullID is the Ed25519 verification key of a node.
type FullID struct {
	key ed25519.PublicKey
}

// NewFullID wraps a public key. The value is not checked for validity.
func NewFullID(key ed25519.PublicKey) *FullID {
	return &FullID{
		key: key,
	}
}

// NewFullIDFromBytes converts raw key data.
func NewFullIDFromBytes(data []byte) (*FullID, error) {
	if len(data) != ed25519.PublicKeySize {
		return nil, ErrInvalidKeySize
	}
	key := make([]byte, ed25519.PublicKeySize)
	copy(key, data)
	return &FullID{key: key}, nil
}

// PublicKey returns the wrapped verification key.
func (f *FullID) PublicKey() ed25519.PublicKey {
	return f.key
}

// Bytes returns the binary representation of the public key.
func (f *FullID) Bytes() []byte {
	return f.key
}

// Short computes the short id of the key.
func (f *FullID) Short() (id ShortID) {
	var tagged [4 + ed25519.PublicKeySize]byte
	binary.LittleEndian.PutUint32(tagged[:4], keyTagEd25519)
	copy(tagged[4:], f.key)
	return sha256.Sum256(tagged[:])
}

// Verify checks a signature of a message.
func (f *FullID) Verify(msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(f.key, msg, sig)
}

// String returns a human-readable representation of a full id.
func (f *FullID) String() string {
	return hex.EncodeToString(f.key)
}

//----------------------------------------------------------------------
// Stored node key
//----------------------------------------------------------------------

// StoredKey is a local identity: short id, full id and signing key.
// Instances are shared by reference between the key store and the
// packet pipeline.
type StoredKey struct {
	shortID ShortID
	fullID  *FullID
	prv     ed25519.PrivateKey
	scalar  [32]byte // X25519 scalar of the signing key (for handshakes)
}

// NewStoredKey wraps an Ed25519 signing key.
func NewStoredKey(prv ed25519.PrivateKey) (*StoredKey, error) {
	if len(prv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidSeedSize
	}
	fullID := NewFullID(prv.Public().(ed25519.PublicKey))
	return &StoredKey{
		shortID: fullID.Short(),
		fullID:  fullID,
		prv:     prv,
		scalar:  edScalar(prv),
	}, nil
}

// NewStoredKeyFromSeed derives a stored key from a 32-byte seed.
func NewStoredKeyFromSeed(seed []byte) (*StoredKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeedSize
	}
	return NewStoredKey(ed25519.NewKeyFromSeed(seed))
}

// NewRandomStoredKey generates a fresh identity.
func NewRandomStoredKey() *StoredKey {
	_, prv, _ := ed25519.GenerateKey(nil)
	key, _ := NewStoredKey(prv)
	return key
}

// ID returns the short id of the key.
func (k *StoredKey) ID() ShortID {
	return k.shortID
}

// FullID returns the verification key.
func (k *StoredKey) FullID() *FullID {
	return k.fullID
}

// Sign creates a signature for a message.
func (k *StoredKey) Sign(msg []byte) []byte {
	return ed25519.Sign(k.prv, msg)
}
