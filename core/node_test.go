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
	"context"
	"testing"
	"time"

	"adnl/config"
	"adnl/crypto"
	"adnl/message"
	"adnl/util"
)

// collector records custom messages for test assertions.
type collector struct {
	data chan []byte
}

func newCollector() *collector {
	return &collector{
		data: make(chan []byte, 16),
	}
}

func (c *collector) OnCustom(localID, peerID crypto.ShortID, data []byte) (bool, error) {
	c.data <- util.Clone(data)
	return true, nil
}

func (c *collector) OnQuery(localID, peerID crypto.ShortID, query []byte) (*QueryResult, error) {
	return &QueryResult{}, nil
}

func (c *collector) wait(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-c.data:
		return data
	case <-time.After(3 * time.Second):
		t.Fatal("no custom message received")
		return nil
	}
}

// testNode bundles a node with its identity.
type testNode struct {
	node *Node
	key  *crypto.StoredKey
	sub  *collector
}

func startTestNode(t *testing.T, ctx context.Context) *testNode {
	t.Helper()
	key := crypto.NewRandomStoredKey()
	addr, err := util.ParseAddress("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	node := NewNode(addr, crypto.NewKeyStore(map[int]*crypto.StoredKey{1: key}), config.DefaultOptions(), nil)
	sub := newCollector()
	if err = node.Start(ctx, []Subscriber{sub}); err != nil {
		t.Fatal(err)
	}
	return &testNode{node: node, key: key, sub: sub}
}

// connect makes b known to a.
func (tn *testNode) connect(t *testing.T, other *testNode) {
	t.Helper()
	ok, err := tn.node.AddPeer(tn.key.ID(), other.key.ID(), other.node.Address(), other.key.FullID())
	if err != nil || !ok {
		t.Fatalf("add peer failed: ok=%v err=%v", ok, err)
	}
}

func TestNodeDoubleStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	defer a.node.Shutdown()
	if err := a.node.Start(ctx, nil); err != ErrAlreadyRunning {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestNodeBootAndPing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	b := startTestNode(t, ctx)
	defer a.node.Shutdown()
	defer b.node.Shutdown()
	a.connect(t, b)

	// first message bootstraps the channel via handshake framing
	if err := a.node.SendCustomMessage(a.key.ID(), b.key.ID(), []byte("ping")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.sub.wait(t), []byte("ping")) {
		t.Fatal("wrong custom payload")
	}

	// b learned a from the packet source; the reply confirms the channel
	if err := b.node.SendCustomMessage(b.key.ID(), a.key.ID(), []byte("pong")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.sub.wait(t), []byte("pong")) {
		t.Fatal("wrong custom payload")
	}

	// second round runs on channel framing
	if err := a.node.SendCustomMessage(a.key.ID(), b.key.ID(), []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.sub.wait(t), []byte("hello")) {
		t.Fatal("wrong custom payload")
	}
}

func TestNodeLargeMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	b := startTestNode(t, ctx)
	defer a.node.Shutdown()
	defer b.node.Shutdown()
	a.connect(t, b)

	// exceeds the MTU contract; sent as Part fragments
	blob := util.NewRndArray(5000)
	if err := a.node.SendCustomMessage(a.key.ID(), b.key.ID(), blob); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.sub.wait(t), blob) {
		t.Fatal("reassembled payload mismatch")
	}
}

func TestNodeQueryPing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	b := startTestNode(t, ctx)
	defer a.node.Shutdown()
	defer b.node.Shutdown()
	a.connect(t, b)

	// the built-in ping responder answers with a pong
	w := new(message.Writer)
	w.WriteU32(TagPing)
	w.WriteU64(1234567)
	answer, err := a.node.Query(ctx, a.key.ID(), b.key.ID(), w.Bytes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if answer == nil {
		t.Fatal("query timed out")
	}
	r := message.NewReader(answer)
	tag, err := r.ReadU32()
	if err != nil || tag != TagPong {
		t.Fatalf("unexpected answer tag %08x (%v)", tag, err)
	}
	value, err := r.ReadU64()
	if err != nil || value != 1234567 {
		t.Fatalf("unexpected pong value %d (%v)", value, err)
	}
}

func TestNodeQueryTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	b := startTestNode(t, ctx)
	defer a.node.Shutdown()
	defer b.node.Shutdown()
	a.connect(t, b)

	// no subscriber on b consumes this query; a sees a drop
	start := time.Now()
	answer, err := a.node.Query(ctx, a.key.ID(), b.key.ID(), []byte("no such query"), 600)
	if err != nil {
		t.Fatal(err)
	}
	if answer != nil {
		t.Fatal("expected timeout, got answer")
	}
	if time.Since(start) < 500*time.Millisecond {
		t.Fatal("query returned before its deadline")
	}
}

func TestNodeUnknownPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startTestNode(t, ctx)
	defer a.node.Shutdown()

	stranger := crypto.NewRandomStoredKey()
	if err := a.node.SendCustomMessage(a.key.ID(), stranger.ID(), []byte("x")); err != ErrUnknownPeer {
		t.Fatalf("expected unknown-peer error, got %v", err)
	}
	if _, err := a.node.Query(ctx, a.key.ID(), stranger.ID(), []byte("x"), 100); err != ErrUnknownPeer {
		t.Fatalf("expected unknown-peer error, got %v", err)
	}
}
