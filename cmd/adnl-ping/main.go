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

package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adnl/config"
	"adnl/core"
	"adnl/crypto"
	"adnl/message"
	"adnl/util"

	"github.com/bfix/gospel/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle command line arguments
	var (
		listen string
		peer   string
		seed   string
	)
	flag.StringVar(&listen, "l", "127.0.0.1:0", "UDP listen address")
	flag.StringVar(&peer, "p", "", "peer specification 'pubkey@ip:port' (client mode)")
	flag.StringVar(&seed, "k", "", "base64-encoded Ed25519 seed (random if empty)")
	flag.Parse()

	// setup local identity
	var (
		key *crypto.StoredKey
		err error
	)
	if seed != "" {
		var data []byte
		if data, err = base64.StdEncoding.DecodeString(seed); err == nil {
			key, err = crypto.NewStoredKeyFromSeed(data)
		}
		if err != nil {
			fmt.Println("invalid seed: " + err.Error())
			return
		}
	} else {
		key = crypto.NewRandomStoredKey()
	}

	// setup and start node
	addr, err := util.ParseAddress(listen)
	if err != nil {
		fmt.Println("invalid listen address: " + err.Error())
		return
	}
	keystore := crypto.NewKeyStore(map[int]*crypto.StoredKey{1: key})
	node := core.NewNode(addr, keystore, config.DefaultOptions(), nil)
	if err = node.Start(ctx, nil); err != nil {
		fmt.Println("node failed: " + err.Error())
		return
	}
	defer node.Shutdown()

	fmt.Println("======================================================================")
	fmt.Println("ADNL ping node                            (c) 2023 by Bernd Fix, >Y<")
	fmt.Printf("    Public key '%s'\n", base64.StdEncoding.EncodeToString(key.FullID().Bytes()))
	fmt.Printf("    Address    [%s]\n", node.Address())
	fmt.Println("======================================================================")

	// in client mode, ping the peer until interrupted
	if peer != "" {
		parts := strings.SplitN(peer, "@", 2)
		if len(parts) != 2 {
			fmt.Println("invalid peer specification")
			return
		}
		pub, err := base64.StdEncoding.DecodeString(parts[0])
		if err != nil {
			fmt.Println("invalid peer key: " + err.Error())
			return
		}
		peerFull, err := crypto.NewFullIDFromBytes(pub)
		if err != nil {
			fmt.Println("invalid peer key: " + err.Error())
			return
		}
		peerAddr, err := util.ParseAddress(parts[1])
		if err != nil {
			fmt.Println("invalid peer address: " + err.Error())
			return
		}
		if _, err = node.AddPeer(key.ID(), peerFull.Short(), peerAddr, peerFull); err != nil {
			fmt.Println("add peer failed: " + err.Error())
			return
		}
		go func() {
			value := util.RndUInt64()
			for {
				w := new(message.Writer)
				w.WriteU32(core.TagPing)
				w.WriteU64(value)
				start := time.Now()
				answer, err := node.Query(ctx, key.ID(), peerFull.Short(), w.Bytes(), 0)
				switch {
				case err != nil:
					logger.Println(logger.WARN, "[ping] query failed: "+err.Error())
				case answer == nil:
					logger.Println(logger.WARN, "[ping] timeout")
				default:
					logger.Printf(logger.INFO, "[ping] pong after %s", time.Since(start))
				}
				value++
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second):
				}
			}
		}()
	}

	// handle OS signals
	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh)

loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGKILL, syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "Terminating node (on signal '%s')\n", sig)
				break loop
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "SIGHUP")
			case syscall.SIGURG:
				// TODO: https://github.com/golang/go/issues/37942
			default:
				logger.Println(logger.INFO, "Unhandled signal: "+sig.String())
			}
		case <-ctx.Done():
			break loop
		}
	}
	cancel()
}
