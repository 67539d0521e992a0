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

package transport

import (
	"context"
	"errors"
	"net"

	"adnl/util"

	"github.com/bfix/gospel/logger"
)

// Transport layer error codes
var (
	ErrEndpNotRunning = errors.New("endpoint not running")
	ErrEndpQueueFull  = errors.New("send queue congested")
	ErrEndpWriteShort = errors.New("write too short")
)

// RecvBufferSize is the size of the datagram receive buffer; larger
// datagrams are not part of the wire contract.
const RecvBufferSize = 2048

// size of the outgoing packet queue
const sendQueueSize = 1024

// Packet is an outgoing datagram; its lifetime ends when sent.
type Packet struct {
	Dest *util.Address // destination endpoint
	Data []byte        // serialized and encrypted packet
}

// Handler processes one received datagram. The callee owns the buffer.
type Handler func(data []byte)

//----------------------------------------------------------------------
// Packet-oriented endpoint
//----------------------------------------------------------------------

// Endpoint owns the UDP socket. Outbound packets pass a queue drained
// by a sender routine; each inbound datagram is handed to the handler
// in its own routine.
type Endpoint struct {
	addr  *util.Address // listening address
	conn  *net.UDPConn  // packet connection
	queue chan *Packet  // outgoing packet queue
}

// NewEndpoint creates an endpoint for the listening address.
func NewEndpoint(addr *util.Address) *Endpoint {
	return &Endpoint{
		addr:  addr,
		queue: make(chan *Packet, sendQueueSize),
	}
}

// Run binds the socket and starts the sender and receiver routines.
// The routines return at their next suspension once ctx is done.
func (ep *Endpoint) Run(ctx context.Context, hdlr Handler) (err error) {
	// create listener
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ep.addr.UDPAddr().String())
	if err != nil {
		return
	}
	ep.conn = conn.(*net.UDPConn)

	// use the actual listening address (dynamic port assignment)
	local, err := util.NewAddressFromUDP(ep.conn.LocalAddr().(*net.UDPAddr))
	if err == nil {
		ep.addr = local
	}

	// run watch dog for termination
	go func() {
		<-ctx.Done()
		ep.conn.Close()
	}()
	// run sender routine: drain the queue onto the socket
	go func() {
		for {
			var pkt *Packet
			select {
			case <-ctx.Done():
				return
			case pkt = <-ep.queue:
			}
			n, err := ep.conn.WriteToUDP(pkt.Data, pkt.Dest.UDPAddr())
			if err != nil {
				// UDP is lossy by design
				logger.Println(logger.DBG, "[udp] send failed: "+err.Error())
				continue
			}
			if n != len(pkt.Data) {
				logger.Printf(logger.WARN, "[udp] incomplete send: %d of %d", n, len(pkt.Data))
			}
		}
	}()
	// run receiver routine: hand datagrams to the handler
	go func() {
		buffer := make([]byte, RecvBufferSize)
		for {
			n, _, err := ep.conn.ReadFromUDP(buffer)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				logger.Println(logger.DBG, "[udp] receive failed: "+err.Error())
				continue
			}
			if n == 0 {
				continue
			}
			// the handler routine owns the datagram copy
			go hdlr(util.Clone(buffer[:n]))
		}
	}()
	return
}

// Send enqueues an outgoing packet. The call never blocks; a congested
// queue fails the send (the packet pipeline treats this as a lost
// datagram).
func (ep *Endpoint) Send(pkt *Packet) error {
	if ep.conn == nil {
		return ErrEndpNotRunning
	}
	select {
	case ep.queue <- pkt:
		return nil
	default:
		return ErrEndpQueueFull
	}
}

// Address returns the actual listening address.
func (ep *Endpoint) Address() *util.Address {
	return ep.addr
}
