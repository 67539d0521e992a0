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
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"sync/atomic"

	"adnl/crypto"
	"adnl/util"
)

// Channel error codes
var (
	ErrChannelPacketTooShort  = errors.New("channel packet too short")
	ErrChannelPacketBadDigest = errors.New("channel packet checksum mismatch")
)

// ChannelID is the 32-byte identifier a sub-channel is looked up by
// when a datagram arrives.
type ChannelID [32]byte

// Channel ids are hashes of the wire-tagged symmetric channel secret.
var keyTagAES = crc32.ChecksumIEEE([]byte("pub.aes key:int256 = PublicKey"))

// computeChannelID derives the id of a sub-channel secret.
func computeChannelID(secret [32]byte) (id ChannelID) {
	var tagged [36]byte
	binary.LittleEndian.PutUint32(tagged[:4], keyTagAES)
	copy(tagged[4:], secret[:])
	return sha256.Sum256(tagged[:])
}

// swapHalves derives the priority secret from an ordinary one.
func swapHalves(secret [32]byte) (res [32]byte) {
	copy(res[:16], secret[16:])
	copy(res[16:], secret[:16])
	return
}

//----------------------------------------------------------------------

// ChannelCreationContext tells whether a channel is built while
// processing a CreateChannel or a ConfirmChannel message.
type ChannelCreationContext int

const (
	ContextCreateChannel ChannelCreationContext = iota
	ContextConfirmChannel
)

// String returns the context in human-readable form.
func (c ChannelCreationContext) String() string {
	if c == ContextConfirmChannel {
		return "confirm"
	}
	return "create"
}

//----------------------------------------------------------------------

// subChannel is one priority class of a channel: the two direction
// secrets and their lookup ids.
type subChannel struct {
	inSecret  [32]byte
	outSecret [32]byte
	inID      ChannelID
	outID     ChannelID
}

// Channel is the symmetric cipher context pair established with a peer
// by ECDH between ephemeral keys. The ordinary and priority
// sub-channels differ only in key material.
type Channel struct {
	localID  crypto.ShortID
	peerID   crypto.ShortID
	ordinary subChannel
	priority subChannel

	peerKey  [32]byte // remote ephemeral public key (for validity checks)
	peerDate int32    // remote channel date (for validity checks)

	ready       int32 // atomic bool: peer is known to hold both halves
	dropTimeout int32 // atomic deadline; expired timeout resets the peer
}

// NewChannel derives a channel from the local ephemeral key and the
// announced remote ephemeral public key. Both sides compute the same
// pair of direction secrets: the side with the smaller id takes the
// shared secret inbound and its reverse outbound.
func NewChannel(localID, peerID crypto.ShortID, localKey *crypto.KeyPair,
	peerKey [32]byte, peerDate int32, cctx ChannelCreationContext) (*Channel, error) {

	shared, err := localKey.Shared(peerKey)
	if err != nil {
		return nil, err
	}
	var reversed [32]byte
	copy(reversed[:], util.Reverse(shared[:]))
	var in, out [32]byte
	switch bytes.Compare(localID[:], peerID[:]) {
	case -1:
		in, out = shared, reversed
	case 1:
		in, out = reversed, shared
	default:
		in, out = shared, shared
	}
	priIn, priOut := swapHalves(in), swapHalves(out)

	c := &Channel{
		localID: localID,
		peerID:  peerID,
		ordinary: subChannel{
			inSecret:  in,
			outSecret: out,
			inID:      computeChannelID(in),
			outID:     computeChannelID(out),
		},
		priority: subChannel{
			inSecret:  priIn,
			outSecret: priOut,
			inID:      computeChannelID(priIn),
			outID:     computeChannelID(priOut),
		},
		peerKey:  peerKey,
		peerDate: peerDate,
	}
	if cctx == ContextConfirmChannel {
		// the confirming peer already holds both halves
		c.ready = 1
	}
	return c, nil
}

// LocalID returns the local short id of the channel.
func (c *Channel) LocalID() crypto.ShortID {
	return c.localID
}

// PeerID returns the remote short id of the channel.
func (c *Channel) PeerID() crypto.ShortID {
	return c.peerID
}

// OrdinaryInID returns the inbound lookup id of the ordinary class.
func (c *Channel) OrdinaryInID() ChannelID {
	return c.ordinary.inID
}

// PriorityInID returns the inbound lookup id of the priority class.
func (c *Channel) PriorityInID() ChannelID {
	return c.priority.inID
}

// PeerChannelKey returns the announced remote ephemeral public key.
func (c *Channel) PeerChannelKey() [32]byte {
	return c.peerKey
}

// PeerChannelDate returns the announced remote channel date.
func (c *Channel) PeerChannelDate() int32 {
	return c.peerDate
}

// IsStillValid returns true if the channel matches a (re-)announced
// remote key half.
func (c *Channel) IsStillValid(peerKey [32]byte, peerDate int32) bool {
	return c.peerKey == peerKey && c.peerDate == peerDate
}

// Ready returns true once any packet was received on the channel or a
// ConfirmChannel was processed.
func (c *Channel) Ready() bool {
	return atomic.LoadInt32(&c.ready) != 0
}

// SetReady marks the channel usable for outbound channel framing.
func (c *Channel) SetReady() {
	atomic.StoreInt32(&c.ready, 1)
}

// UpdateDropTimeout arms the drop deadline if unset and returns the
// previous value. An armed deadline in the past signals a peer whose
// queries go unanswered for a full timeout round.
func (c *Channel) UpdateDropTimeout(now, timeout int32) int32 {
	if atomic.CompareAndSwapInt32(&c.dropTimeout, 0, now+timeout) {
		return 0
	}
	return atomic.LoadInt32(&c.dropTimeout)
}

// ResetDropTimeout clears the deadline (traffic arrived).
func (c *Channel) ResetDropTimeout() {
	atomic.StoreInt32(&c.dropTimeout, 0)
}

//----------------------------------------------------------------------
// Framing
//----------------------------------------------------------------------

// Encrypt wraps a serialized packet body into channel framing:
// out-id || sha256(body) || AES-CTR(body).
func (c *Channel) Encrypt(body []byte, priority bool) ([]byte, error) {
	sub := c.sub(priority)
	checksum := sha256.Sum256(body)
	buffer := make([]byte, 64+len(body))
	copy(buffer[:32], sub.outID[:])
	copy(buffer[32:64], checksum[:])
	copy(buffer[64:], body)
	if err := crypto.ApplyPacketCipher(&sub.outSecret, &checksum, buffer[64:]); err != nil {
		return nil, err
	}
	return buffer, nil
}

// Decrypt unwraps channel framing in place and returns the body. The
// first 32 bytes of the buffer are the (already matched) in-id.
func (c *Channel) Decrypt(buffer []byte, priority bool) ([]byte, error) {
	if len(buffer) < 64 {
		return nil, ErrChannelPacketTooShort
	}
	sub := c.sub(priority)
	var checksum [32]byte
	copy(checksum[:], buffer[32:64])
	if err := crypto.ApplyPacketCipher(&sub.inSecret, &checksum, buffer[64:]); err != nil {
		return nil, err
	}
	if digest := sha256.Sum256(buffer[64:]); !bytes.Equal(digest[:], checksum[:]) {
		return nil, ErrChannelPacketBadDigest
	}
	return buffer[64:], nil
}

func (c *Channel) sub(priority bool) *subChannel {
	if priority {
		return &c.priority
	}
	return &c.ordinary
}
