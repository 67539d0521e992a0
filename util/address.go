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

package util

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address-related error codes
var (
	ErrAddressInvalid = errors.New("invalid address")
	ErrAddressNotIPv4 = errors.New("address is not IPv4")
)

// Address specifies how a peer is reachable over UDP. Only IPv4
// endpoints are exchanged in packets.
type Address struct {
	IP   uint32 // IPv4 address in host order (as serialized)
	Port uint16 // UDP port
}

// NewAddress creates an address from an IP and port. Fails on
// non-IPv4 addresses.
func NewAddress(ip net.IP, port uint16) (*Address, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, ErrAddressNotIPv4
	}
	return &Address{
		IP:   binary.BigEndian.Uint32(ip4),
		Port: port,
	}, nil
}

// NewAddressFromUDP converts a socket address.
func NewAddressFromUDP(addr *net.UDPAddr) (*Address, error) {
	return NewAddress(addr.IP, uint16(addr.Port))
}

// ParseAddress translates a string like "1.2.3.4:5678" into an address.
func ParseAddress(s string) (addr *Address, err error) {
	p := strings.SplitN(s, ":", 2)
	if len(p) != 2 {
		return nil, ErrAddressInvalid
	}
	ip := net.ParseIP(p[0])
	if ip == nil {
		return nil, ErrAddressInvalid
	}
	port, err := strconv.ParseUint(p[1], 10, 16)
	if err != nil {
		return nil, ErrAddressInvalid
	}
	return NewAddress(ip, uint16(port))
}

// UDPAddr returns the matching socket address.
func (a *Address) UDPAddr() *net.UDPAddr {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, a.IP)
	return &net.UDPAddr{
		IP:   ip,
		Port: int(a.Port),
	}
}

// Equals return true if two addresses match.
func (a *Address) Equals(b *Address) bool {
	return a.IP == b.IP && a.Port == b.Port
}

// String returns a human-readable representation of an address.
func (a *Address) String() string {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, a.IP)
	return fmt.Sprintf("%s:%d", ip.String(), a.Port)
}
