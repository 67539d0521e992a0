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
	"sync"
	"sync/atomic"

	"adnl/crypto"
	"adnl/util"
)

//----------------------------------------------------------------------
// Per-direction peer state
//----------------------------------------------------------------------

// PeerState holds the reinit date and per-priority seqno histories of
// one transfer direction.
type PeerState struct {
	reinitDate int32 // atomic; monotonically non-decreasing
	histories  [2]*PacketHistory
}

// NewPeerState creates a direction state with the given initial reinit
// date. The receiver direction starts at the node start time; the
// sender direction starts at zero until the peer announces its date.
func NewPeerState(reinitDate int32, historyEnabled bool) *PeerState {
	return &PeerState{
		reinitDate: reinitDate,
		histories: [2]*PacketHistory{
			NewPacketHistory(historyEnabled),
			NewPacketHistory(historyEnabled),
		},
	}
}

// ReinitDate returns the current reinit date.
func (s *PeerState) ReinitDate() int32 {
	return atomic.LoadInt32(&s.reinitDate)
}

// SetReinitDate updates the reinit date.
func (s *PeerState) SetReinitDate(date int32) {
	atomic.StoreInt32(&s.reinitDate, date)
}

// History returns the seqno tracker for a priority class.
func (s *PeerState) History(priority bool) *PacketHistory {
	if priority {
		return s.histories[1]
	}
	return s.histories[0]
}

// ResetHistories forgets all tracked seqnos (both priority classes).
func (s *PeerState) ResetHistories() {
	s.histories[0].Reset()
	s.histories[1].Reset()
}

//----------------------------------------------------------------------
// Peer
//----------------------------------------------------------------------

// Peer is the state kept per (local id, peer id) pair: last-seen
// endpoint, remote key, the local ephemeral channel key and the two
// direction states.
type Peer struct {
	mtx        sync.Mutex
	ip         *util.Address   // current endpoint (last-seen wins)
	fullID     *crypto.FullID  // remote key (immutable)
	channelKey *crypto.KeyPair // local ephemeral half for channels
	sender     *PeerState
	receiver   *PeerState
}

// NewPeer creates peer state. The receiver reinit date is the node
// start time.
func NewPeer(startTime int32, ip *util.Address, fullID *crypto.FullID, historyEnabled bool) *Peer {
	return &Peer{
		ip:         ip,
		fullID:     fullID,
		channelKey: crypto.NewKeyPair(),
		sender:     NewPeerState(0, historyEnabled),
		receiver:   NewPeerState(startTime, historyEnabled),
	}
}

// FullID returns the remote key.
func (p *Peer) FullID() *crypto.FullID {
	return p.fullID
}

// ID returns the short id of the remote key.
func (p *Peer) ID() crypto.ShortID {
	return p.fullID.Short()
}

// IPAddress returns the current endpoint of the peer.
func (p *Peer) IPAddress() *util.Address {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.ip
}

// SetIPAddress records a new endpoint for the peer.
func (p *Peer) SetIPAddress(addr *util.Address) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.ip = addr
}

// ChannelKey returns the local ephemeral channel key half.
func (p *Peer) ChannelKey() *crypto.KeyPair {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.channelKey
}

// Sender returns the outbound direction state.
func (p *Peer) Sender() *PeerState {
	return p.sender
}

// Receiver returns the inbound direction state.
func (p *Peer) Receiver() *PeerState {
	return p.receiver
}

// DemotePriority returns true once too many priority packets went out
// without the peer ever delivering one back; senders then fall back to
// the ordinary sub-channel.
func (p *Peer) DemotePriority() bool {
	return p.receiver.History(true).Seqno() == 0 &&
		p.sender.History(true).Seqno() > MaxPriorityAttempts
}

// Reset rotates the ephemeral channel key and forgets the seqno
// histories. Reinit dates are kept: they only move forward.
func (p *Peer) Reset() {
	p.mtx.Lock()
	p.channelKey = crypto.NewKeyPair()
	p.mtx.Unlock()
	p.sender.ResetHistories()
	p.receiver.ResetHistories()
}
