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
	"errors"

	"adnl/crypto"
	"adnl/util"
)

// Packet error codes
var (
	ErrInvalidPacket      = errors.New("invalid packet")
	ErrSignatureNotFound  = errors.New("no signature in packet")
	ErrInvalidSignature   = errors.New("invalid packet signature")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// InitialVersion is the implied protocol version of the packet layout.
const InitialVersion = 0

// Packet structure tags.
var (
	TagPacketContents = TagOf("adnl.packetContents rand1:bytes flags:# from:flags.0?PublicKey from_short:flags.1?adnl.id.short message:flags.2?adnl.Message messages:flags.3?(vector adnl.Message) address:flags.4?adnl.addressList priority_address:flags.5?adnl.addressList seqno:flags.6?long confirm_seqno:flags.7?long recv_addr_list_version:flags.8?int recv_priority_addr_list_version:flags.9?int reinit_date:flags.10?int dst_reinit_date:flags.10?int signature:flags.11?bytes rand2:bytes = adnl.PacketContents")
	TagAddressUDP     = TagOf("adnl.address.udp ip:int port:int = adnl.Address")
	TagPubEd25519     = TagOf("pub.ed25519 key:int256 = PublicKey")
)

// flag bits of adnl.packetContents
const (
	flagFrom = 1 << iota
	flagFromShort
	flagMessage
	flagMessages
	flagAddress
	flagPriorityAddress
	flagSeqno
	flagConfirmSeqno
	flagRecvAddrVersion
	flagRecvPriorityAddrVersion
	flagReinitDates
	flagSignature
)

//----------------------------------------------------------------------
// Address list
//----------------------------------------------------------------------

// AddressList advertises the UDP endpoints of the sending node.
type AddressList struct {
	Addrs      []*util.Address // known endpoints (first one wins)
	Version    int32           // list version (creation date)
	ReinitDate int32           // sender reinit date
	Priority   int32           // unused, zero
	ExpireAt   int32           // expiration date (0 = unset)
}

// BestAddr returns the first listed endpoint (or nil).
func (al *AddressList) BestAddr() *util.Address {
	if len(al.Addrs) == 0 {
		return nil
	}
	return al.Addrs[0]
}

// encode writes the bare serialization of an address list.
func (al *AddressList) encode(w *Writer) {
	w.WriteU32(uint32(len(al.Addrs)))
	for _, addr := range al.Addrs {
		w.WriteU32(TagAddressUDP)
		w.WriteU32(addr.IP)
		w.WriteI32(int32(addr.Port))
	}
	w.WriteI32(al.Version)
	w.WriteI32(al.ReinitDate)
	w.WriteI32(al.Priority)
	w.WriteI32(al.ExpireAt)
}

// size returns the bare serialized size of an address list.
func (al *AddressList) size() int {
	return 4 + 12*len(al.Addrs) + 16
}

// readAddressList parses a bare address list.
func readAddressList(r *Reader) (al *AddressList, err error) {
	al = new(AddressList)
	var count uint32
	if count, err = r.ReadU32(); err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		var tag, ip uint32
		var port int32
		if tag, err = r.ReadU32(); err != nil {
			return
		}
		if tag != TagAddressUDP {
			// only IPv4/UDP endpoints are understood
			err = ErrInvalidPacket
			return
		}
		if ip, err = r.ReadU32(); err != nil {
			return
		}
		if port, err = r.ReadI32(); err != nil {
			return
		}
		if port < 0 || port > 65535 {
			err = ErrInvalidPacket
			return
		}
		al.Addrs = append(al.Addrs, &util.Address{IP: ip, Port: uint16(port)})
	}
	if al.Version, err = r.ReadI32(); err != nil {
		return
	}
	if al.ReinitDate, err = r.ReadI32(); err != nil {
		return
	}
	if al.Priority, err = r.ReadI32(); err != nil {
		return
	}
	al.ExpireAt, err = r.ReadI32()
	return
}

//----------------------------------------------------------------------
// Packet contents
//----------------------------------------------------------------------

// ReinitDates is the grouped pair of reinit dates carried in handshake
// packets: Local is the sender's own (receiver-side) reinit date,
// Target the sender's view of the recipient's reinit date.
type ReinitDates struct {
	Local  int32
	Target int32
}

// PacketContents is the decrypted inner structure of every datagram.
// Optional fields are nil when absent.
type PacketContents struct {
	Rand1                   []byte          // 3 random bytes
	From                    *crypto.FullID  // sender public key (handshake framing)
	FromShort               *crypto.ShortID // sender short id (handshake framing)
	Messages                []Message       // one or more inner messages
	Address                 *AddressList    // sender endpoints
	PriorityAddress         *AddressList    // unused by this implementation
	Seqno                   *uint64         // per-priority packet sequence number
	ConfirmSeqno            *uint64         // highest seqno seen from the recipient
	RecvAddrVersion         *int32          // unused by this implementation
	RecvPriorityAddrVersion *int32          // unused by this implementation
	ReinitDates             *ReinitDates    // grouped reinit dates (handshake framing)
	Signature               []byte          // Ed25519 signature (handshake framing)
	Rand2                   []byte          // 7 random bytes

	// retain the single/vector encoding choice of the sender so that
	// re-serialization for signature checks is byte-faithful
	multiMessages bool
}

// NewPacketContents returns a packet with fresh random paddings.
func NewPacketContents() *PacketContents {
	return &PacketContents{
		Rand1: util.NewRndArray(3),
		Rand2: util.NewRndArray(7),
	}
}

// flags computes the flag word from the populated fields.
func (p *PacketContents) flags() (f uint32) {
	if p.From != nil {
		f |= flagFrom
	}
	if p.FromShort != nil {
		f |= flagFromShort
	}
	if len(p.Messages) == 1 && !p.multiMessages {
		f |= flagMessage
	} else if len(p.Messages) > 0 {
		f |= flagMessages
	}
	if p.Address != nil {
		f |= flagAddress
	}
	if p.PriorityAddress != nil {
		f |= flagPriorityAddress
	}
	if p.Seqno != nil {
		f |= flagSeqno
	}
	if p.ConfirmSeqno != nil {
		f |= flagConfirmSeqno
	}
	if p.RecvAddrVersion != nil {
		f |= flagRecvAddrVersion
	}
	if p.RecvPriorityAddrVersion != nil {
		f |= flagRecvPriorityAddrVersion
	}
	if p.ReinitDates != nil {
		f |= flagReinitDates
	}
	if p.Signature != nil {
		f |= flagSignature
	}
	return
}

// MarshalBinary returns the boxed serialization of the packet.
func (p *PacketContents) MarshalBinary() ([]byte, error) {
	w := new(Writer)
	w.WriteU32(TagPacketContents)
	w.WriteBytes(p.Rand1)
	w.WriteU32(p.flags())
	if p.From != nil {
		w.WriteU32(TagPubEd25519)
		var key [32]byte
		copy(key[:], p.From.Bytes())
		w.WriteInt256(key)
	}
	if p.FromShort != nil {
		w.WriteInt256(*p.FromShort)
	}
	if len(p.Messages) == 1 && !p.multiMessages {
		p.Messages[0].Encode(w)
	} else if len(p.Messages) > 0 {
		w.WriteU32(uint32(len(p.Messages)))
		for _, m := range p.Messages {
			m.Encode(w)
		}
	}
	if p.Address != nil {
		p.Address.encode(w)
	}
	if p.PriorityAddress != nil {
		p.PriorityAddress.encode(w)
	}
	if p.Seqno != nil {
		w.WriteU64(*p.Seqno)
	}
	if p.ConfirmSeqno != nil {
		w.WriteU64(*p.ConfirmSeqno)
	}
	if p.RecvAddrVersion != nil {
		w.WriteI32(*p.RecvAddrVersion)
	}
	if p.RecvPriorityAddrVersion != nil {
		w.WriteI32(*p.RecvPriorityAddrVersion)
	}
	if p.ReinitDates != nil {
		w.WriteI32(p.ReinitDates.Local)
		w.WriteI32(p.ReinitDates.Target)
	}
	if p.Signature != nil {
		w.WriteBytes(p.Signature)
	}
	w.WriteBytes(p.Rand2)
	return w.Bytes(), nil
}

// DecodePacket parses a decrypted packet body.
func DecodePacket(data []byte) (p *PacketContents, err error) {
	r := NewReader(data)
	var tag uint32
	if tag, err = r.ReadU32(); err != nil {
		return
	}
	if tag != TagPacketContents {
		return nil, ErrInvalidPacket
	}
	p = new(PacketContents)
	if p.Rand1, err = r.ReadBytes(); err != nil {
		return
	}
	var flags uint32
	if flags, err = r.ReadU32(); err != nil {
		return
	}
	if flags&flagFrom != 0 {
		var keyTag uint32
		if keyTag, err = r.ReadU32(); err != nil {
			return
		}
		if keyTag != TagPubEd25519 {
			return nil, ErrInvalidPacket
		}
		var key [32]byte
		if key, err = r.ReadInt256(); err != nil {
			return
		}
		if p.From, err = crypto.NewFullIDFromBytes(key[:]); err != nil {
			return
		}
	}
	if flags&flagFromShort != 0 {
		var id [32]byte
		if id, err = r.ReadInt256(); err != nil {
			return
		}
		short := crypto.ShortID(id)
		p.FromShort = &short
	}
	if flags&flagMessage != 0 {
		var m Message
		if m, err = readMessage(r); err != nil {
			return
		}
		p.Messages = []Message{m}
	}
	if flags&flagMessages != 0 {
		if flags&flagMessage != 0 {
			return nil, ErrInvalidPacket
		}
		p.multiMessages = true
		var count uint32
		if count, err = r.ReadU32(); err != nil {
			return
		}
		for i := uint32(0); i < count; i++ {
			var m Message
			if m, err = readMessage(r); err != nil {
				return
			}
			p.Messages = append(p.Messages, m)
		}
	}
	if flags&flagAddress != 0 {
		if p.Address, err = readAddressList(r); err != nil {
			return
		}
	}
	if flags&flagPriorityAddress != 0 {
		if p.PriorityAddress, err = readAddressList(r); err != nil {
			return
		}
	}
	if flags&flagSeqno != 0 {
		var v uint64
		if v, err = r.ReadU64(); err != nil {
			return
		}
		p.Seqno = &v
	}
	if flags&flagConfirmSeqno != 0 {
		var v uint64
		if v, err = r.ReadU64(); err != nil {
			return
		}
		p.ConfirmSeqno = &v
	}
	if flags&flagRecvAddrVersion != 0 {
		var v int32
		if v, err = r.ReadI32(); err != nil {
			return
		}
		p.RecvAddrVersion = &v
	}
	if flags&flagRecvPriorityAddrVersion != 0 {
		var v int32
		if v, err = r.ReadI32(); err != nil {
			return
		}
		p.RecvPriorityAddrVersion = &v
	}
	if flags&flagReinitDates != 0 {
		rd := new(ReinitDates)
		if rd.Local, err = r.ReadI32(); err != nil {
			return
		}
		if rd.Target, err = r.ReadI32(); err != nil {
			return
		}
		p.ReinitDates = rd
	}
	if flags&flagSignature != 0 {
		if p.Signature, err = r.ReadBytes(); err != nil {
			return
		}
	}
	if p.Rand2, err = r.ReadBytes(); err != nil {
		return
	}
	if r.Remaining() != 0 {
		return nil, ErrInvalidPacket
	}
	return
}

//----------------------------------------------------------------------
// Signature handling
//----------------------------------------------------------------------

// Sign serializes the packet without a signature, signs it and stores
// the signature for the final serialization.
func (p *PacketContents) Sign(key *crypto.StoredKey) error {
	p.Signature = nil
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	p.Signature = key.Sign(data)
	return nil
}

// VerifySignature checks the packet signature against the sender key.
func (p *PacketContents) VerifySignature(full *crypto.FullID) error {
	if p.Signature == nil {
		return ErrSignatureNotFound
	}
	sig := p.Signature
	p.Signature = nil
	data, err := p.MarshalBinary()
	p.Signature = sig
	if err != nil {
		return err
	}
	if !full.Verify(data, sig) {
		return ErrInvalidSignature
	}
	return nil
}
