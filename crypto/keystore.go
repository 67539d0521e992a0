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
	"errors"

	"adnl/util"
)

// Key store error codes
var (
	ErrKeyIDNotFound  = errors.New("key id not found")
	ErrKeyTagNotFound = errors.New("key tag not found")
)

// KeyStore maps short ids to local identities. Keys are added and
// removed under an opaque integer tag.
type KeyStore struct {
	keys *util.Map[ShortID, *StoredKey]
	tags *util.Map[int, ShortID]
}

// NewKeyStore creates a store over the given tagged identities.
func NewKeyStore(keys map[int]*StoredKey) *KeyStore {
	ks := &KeyStore{
		keys: util.NewMap[ShortID, *StoredKey](),
		tags: util.NewMap[int, ShortID](),
	}
	for tag, key := range keys {
		ks.keys.Put(key.ID(), key)
		ks.tags.Put(tag, key.ID())
	}
	return ks
}

// AddKey inserts a signing key under a tag; returns the short id.
func (ks *KeyStore) AddKey(prv ed25519.PrivateKey, tag int) (ShortID, error) {
	key, err := NewStoredKey(prv)
	if err != nil {
		return ShortID{}, err
	}
	ks.keys.Put(key.ID(), key)
	ks.tags.Put(tag, key.ID())
	return key.ID(), nil
}

// DeleteKey removes an identity; returns true if it was present.
func (ks *KeyStore) DeleteKey(id ShortID, tag int) bool {
	ks.tags.Delete(tag)
	_, ok := ks.keys.Delete(id)
	return ok
}

// KeyByID looks up an identity by short id.
func (ks *KeyStore) KeyByID(id ShortID) (*StoredKey, error) {
	key, ok := ks.keys.Get(id)
	if !ok {
		return nil, ErrKeyIDNotFound
	}
	return key, nil
}

// KeyByTag looks up an identity by tag.
func (ks *KeyStore) KeyByTag(tag int) (*StoredKey, error) {
	id, ok := ks.tags.Get(tag)
	if !ok {
		return nil, ErrKeyTagNotFound
	}
	return ks.KeyByID(id)
}

// Size returns the number of stored identities.
func (ks *KeyStore) Size() int {
	return ks.keys.Size()
}

// ProcessRange iterates over all stored identities.
func (ks *KeyStore) ProcessRange(f func(id ShortID, key *StoredKey) error) error {
	return ks.keys.ProcessRange(f)
}
