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

package config

import (
	"encoding/json"
	"os"

	"github.com/bfix/gospel/logger"
)

///////////////////////////////////////////////////////////////////////
// Node options

// NodeOptions tune the packet pipeline. The zero value is NOT usable;
// start from DefaultOptions().
type NodeOptions struct {
	// floor for computed query timeouts
	QueryMinTimeoutMs uint64 `json:"queryMinTimeoutMs"`
	// default query deadline
	QueryMaxTimeoutMs uint64 `json:"queryMaxTimeoutMs"`
	// idle timeout for reassembly of split messages
	TransferTimeoutSec int32 `json:"transferTimeoutSec"`
	// accepted skew on reinit dates
	ClockToleranceSec int32 `json:"clockToleranceSec"`
	// advertised address-list expiry
	AddressListTimeoutSec int32 `json:"addressListTimeoutSec"`
	// enforce the sliding-window seqno check
	PacketHistoryEnabled bool `json:"packetHistoryEnabled"`
	// reject unsigned handshake packets
	PacketSignatureRequired bool `json:"packetSignatureRequired"`
	// prefer the priority sub-channel for custom messages
	ForceUsePriorityChannels bool `json:"forceUsePriorityChannels"`
	// optional protocol version tag (nil = unversioned)
	Version *int32 `json:"version,omitempty"`
}

// DefaultOptions returns the standard node options.
func DefaultOptions() *NodeOptions {
	return &NodeOptions{
		QueryMinTimeoutMs:        500,
		QueryMaxTimeoutMs:        5000,
		TransferTimeoutSec:       3,
		ClockToleranceSec:        60,
		AddressListTimeoutSec:    1000,
		PacketHistoryEnabled:     false,
		PacketSignatureRequired:  true,
		ForceUsePriorityChannels: true,
		Version:                  nil,
	}
}

///////////////////////////////////////////////////////////////////////
// Node configuration

// KeyConfig holds one local identity for the key store.
type KeyConfig struct {
	PrivateSeed string `json:"privateSeed"` // base64-encoded Ed25519 seed
	Tag         int    `json:"tag"`         // opaque key tag
}

// NodeConfig is the aggregated configuration for an ADNL node.
type NodeConfig struct {
	Address string       `json:"address"` // public UDP endpoint ("ip:port")
	Keys    []*KeyConfig `json:"keys"`    // local identities
	Options *NodeOptions `json:"options"` // pipeline options
}

// Cfg is the global configuration
var Cfg *NodeConfig

// ParseConfig reads a JSON-encoded configuration file and maps it to
// the NodeConfig data structure. Unset options get default values.
func ParseConfig(fileName string) (err error) {
	// parse configuration file
	file, err := os.ReadFile(fileName)
	if err != nil {
		return
	}
	// unmarshal to NodeConfig data structure
	Cfg = &NodeConfig{
		Options: DefaultOptions(),
	}
	if err = json.Unmarshal(file, Cfg); err == nil {
		logger.Printf(logger.DBG, "[config] %s\n", Cfg.String())
	}
	return
}

// String returns the JSON-encoded configuration.
func (c *NodeConfig) String() string {
	data, _ := json.Marshal(c)
	return string(data)
}
