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
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	data := `{
		"address": "127.0.0.1:30303",
		"keys": [
			{"privateSeed": "YGoe6XFH3XdvFRl+agx9gIzPTvxA229WFdkazEMdcOs=", "tag": 1}
		],
		"options": {
			"queryMaxTimeoutMs": 7000,
			"packetHistoryEnabled": true
		}
	}`
	fn := filepath.Join(t.TempDir(), "node.json")
	if err := os.WriteFile(fn, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ParseConfig(fn); err != nil {
		t.Fatal(err)
	}
	if Cfg.Address != "127.0.0.1:30303" {
		t.Fatal("address not parsed")
	}
	if len(Cfg.Keys) != 1 || Cfg.Keys[0].Tag != 1 {
		t.Fatal("keys not parsed")
	}
	// explicit values win, unset options keep their defaults
	if Cfg.Options.QueryMaxTimeoutMs != 7000 {
		t.Fatal("override not applied")
	}
	if !Cfg.Options.PacketHistoryEnabled {
		t.Fatal("override not applied")
	}
	if Cfg.Options.QueryMinTimeoutMs != 500 {
		t.Fatal("default lost")
	}
	if !Cfg.Options.PacketSignatureRequired {
		t.Fatal("default lost")
	}
}

func TestParseConfigMissing(t *testing.T) {
	if err := ParseConfig("/does/not/exist.json"); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDefaultOptions(t *testing.T) {
	opt := DefaultOptions()
	if opt.QueryMinTimeoutMs != 500 || opt.QueryMaxTimeoutMs != 5000 {
		t.Fatal("wrong query timeouts")
	}
	if opt.TransferTimeoutSec != 3 || opt.ClockToleranceSec != 60 {
		t.Fatal("wrong timings")
	}
	if opt.AddressListTimeoutSec != 1000 {
		t.Fatal("wrong address list timeout")
	}
	if opt.PacketHistoryEnabled || !opt.PacketSignatureRequired || !opt.ForceUsePriorityChannels {
		t.Fatal("wrong flags")
	}
	if opt.Version != nil {
		t.Fatal("version should be unset")
	}
}
