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
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"sync"
	"time"

	"adnl/config"
	"adnl/crypto"
	"adnl/message"
	"adnl/transport"
	"adnl/util"

	"github.com/bfix/gospel/logger"
)

//----------------------------------------------------------------------
// Node-related error codes
var (
	ErrAlreadyRunning                = errors.New("node is already running")
	ErrNotRunning                    = errors.New("node is not running")
	ErrInvalidPacket                 = errors.New("invalid packet")
	ErrPeersNotFound                 = errors.New("no peers for local id")
	ErrUnknownMessage                = errors.New("unknown message")
	ErrUnknownQueryAnswer            = errors.New("answer to unknown query")
	ErrUnknownPeer                   = errors.New("unknown peer")
	ErrUnknownPeerInChannel          = errors.New("channel with unknown peer")
	ErrNoSubscribersForCustomMessage = errors.New("no subscribers for custom message")
	ErrNoSubscribersForQuery         = errors.New("no subscribers for query")
	ErrUnexpectedMessageToSend       = errors.New("unexpected message to send")
	ErrFailedToSendPacket            = errors.New("failed to send packet")
)

// Packet-level error codes
var (
	ErrExplicitSourceForChannel = errors.New("explicit source inside channel packet")
	ErrInvalidPeerID            = errors.New("peer id and packet key mismatch")
	ErrNoKeyDataInPacket        = errors.New("no key data in packet")
	ErrUnknownChannel           = errors.New("unknown channel id")
	ErrDstReinitTooNew          = errors.New("destination reinit date too new")
	ErrDstReinitTooOld          = errors.New("destination reinit date too old")
	ErrSrcReinitTooNew          = errors.New("source reinit date too new")
	ErrSrcReinitTooOld          = errors.New("source reinit date too old")
	ErrConfirmationSeqnoTooNew  = errors.New("confirmation seqno too new")
)

// MaxPriorityAttempts is the number of unconfirmed priority packets
// after which sends are demoted to the ordinary sub-channel.
const MaxPriorityAttempts = 10

// channelReceiver resolves an arriving channel id to the channel and
// its priority class.
type channelReceiver struct {
	channel  *Channel
	priority bool
}

//----------------------------------------------------------------------
// Node
//----------------------------------------------------------------------

// Node hosts local identities on one UDP socket and runs the packet
// pipeline: decrypt, validate, dispatch, answer.
type Node struct {
	addr     *util.Address
	keystore *crypto.KeyStore
	options  *config.NodeOptions
	filter   NodeFilter

	// known peers for each local id
	peers *util.Map[crypto.ShortID, *util.Map[crypto.ShortID, *Peer]]

	// channel tables: fast lookup on receive resp. send
	channelsByID    *util.Map[ChannelID, *channelReceiver]
	channelsByPeers *util.Map[crypto.ShortID, *Channel]

	// pending transfers of split messages
	transfers *util.Map[TransferID, *Transfer]

	// pending queries
	queries *QueriesCache

	endpoint    *transport.Endpoint
	subscribers []Subscriber

	// basic reinit date for all local peer states
	startTime int32

	mtx     sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewNode creates a node for an address and a set of local identities.
// The filter is optional.
func NewNode(addr *util.Address, keystore *crypto.KeyStore, options *config.NodeOptions, filter NodeFilter) *Node {
	if options == nil {
		options = config.DefaultOptions()
	}
	n := &Node{
		addr:            addr,
		keystore:        keystore,
		options:         options,
		filter:          filter,
		peers:           util.NewMap[crypto.ShortID, *util.Map[crypto.ShortID, *Peer]](),
		channelsByID:    util.NewMap[ChannelID, *channelReceiver](),
		channelsByPeers: util.NewMap[crypto.ShortID, *Channel](),
		transfers:       util.NewMap[TransferID, *Transfer](),
		queries:         NewQueriesCache(),
		startTime:       util.Now(),
	}
	_ = keystore.ProcessRange(func(id crypto.ShortID, _ *crypto.StoredKey) error {
		n.peers.Put(id, util.NewMap[crypto.ShortID, *Peer]())
		return nil
	})
	return n
}

// Start binds the socket and runs the sender, receiver and handler
// routines until ctx is done or Shutdown is called.
func (n *Node) Start(ctx context.Context, subscribers []Subscriber) (err error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.running {
		return ErrAlreadyRunning
	}
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.subscribers = append(subscribers, &PingSubscriber{})

	n.endpoint = transport.NewEndpoint(n.addr)
	if err = n.endpoint.Run(n.ctx, n.receive); err != nil {
		n.cancel()
		return
	}
	// pick up a dynamically assigned port
	n.addr = n.endpoint.Address()
	n.running = true
	logger.Printf(logger.INFO, "[node] running on %s with %d local key(s)", n.addr, n.keystore.Size())
	return
}

// Shutdown cancels the node routines at their next suspension.
func (n *Node) Shutdown() {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.running {
		n.cancel()
		n.running = false
	}
}

// Address returns the actual node endpoint.
func (n *Node) Address() *util.Address {
	return n.addr
}

// StartTime returns the reinit date of the local peer states.
func (n *Node) StartTime() int32 {
	return n.startTime
}

//----------------------------------------------------------------------
// Key and peer management
//----------------------------------------------------------------------

// AddKey inserts a local identity under a tag.
func (n *Node) AddKey(prv ed25519.PrivateKey, tag int) (crypto.ShortID, error) {
	id, err := n.keystore.AddKey(prv, tag)
	if err != nil {
		return id, err
	}
	n.peers.PutIfAbsent(id, util.NewMap[crypto.ShortID, *Peer]())
	return id, nil
}

// DeleteKey removes a local identity and its peer table.
func (n *Node) DeleteKey(id crypto.ShortID, tag int) bool {
	n.peers.Delete(id)
	return n.keystore.DeleteKey(id, tag)
}

// KeyByID looks up a local identity by short id.
func (n *Node) KeyByID(id crypto.ShortID) (*crypto.StoredKey, error) {
	return n.keystore.KeyByID(id)
}

// KeyByTag looks up a local identity by tag.
func (n *Node) KeyByTag(tag int) (*crypto.StoredKey, error) {
	return n.keystore.KeyByTag(tag)
}

// getPeers returns the peer table of a local id.
func (n *Node) getPeers(localID crypto.ShortID) (*util.Map[crypto.ShortID, *Peer], error) {
	peers, ok := n.peers.Get(localID)
	if !ok {
		return nil, ErrPeersNotFound
	}
	return peers, nil
}

// AddPeer admits a peer (subject to the node filter) or updates its
// endpoint. Returns false if the peer was not admitted.
func (n *Node) AddPeer(localID, peerID crypto.ShortID, addr *util.Address, fullID *crypto.FullID) (bool, error) {
	if peerID == localID {
		return false, nil
	}
	if n.filter != nil && !n.filter.Check(FilterAdnlPacket, addr, peerID) {
		return false, nil
	}
	peers, err := n.getPeers(localID)
	if err != nil {
		return false, err
	}
	_ = peers.Process(func() error {
		if peer, ok := peers.GetUnlocked(peerID); ok {
			peer.SetIPAddress(addr)
		} else {
			peers.PutUnlocked(peerID, NewPeer(n.startTime, addr, fullID, n.options.PacketHistoryEnabled))
			logger.Printf(logger.DBG, "[node] added peer %s -> local %s", peerID, localID)
		}
		return nil
	})
	return true, nil
}

// DeletePeer forgets a peer.
func (n *Node) DeletePeer(localID, peerID crypto.ShortID) (bool, error) {
	peers, err := n.getPeers(localID)
	if err != nil {
		return false, err
	}
	_, ok := peers.Delete(peerID)
	return ok, nil
}

// resetPeer drops the channel of a peer and rotates its ephemeral key.
func (n *Node) resetPeer(localID, peerID crypto.ShortID) error {
	peers, err := n.getPeers(localID)
	if err != nil {
		return err
	}
	peer, ok := peers.Get(peerID)
	if !ok {
		return ErrUnknownPeer
	}
	logger.Printf(logger.WARN, "[node] resetting peer pair %s -> %s", localID, peerID)

	_ = n.channelsByPeers.Process(func() error {
		if ch, ok := n.channelsByPeers.GetUnlocked(peerID); ok {
			n.channelsByPeers.DeleteUnlocked(peerID)
			n.channelsByID.Delete(ch.OrdinaryInID())
			n.channelsByID.Delete(ch.PriorityInID())
		}
		return nil
	})
	peer.Reset()
	return nil
}

//----------------------------------------------------------------------
// Receive path
//----------------------------------------------------------------------

// receive is the transport handler; it owns the datagram buffer.
func (n *Node) receive(buffer []byte) {
	if err := n.handleReceivedData(buffer); err != nil {
		logger.Println(logger.DBG, "[node] failed to handle datagram: "+err.Error())
	}
}

// handleReceivedData decrypts, validates and dispatches one datagram.
func (n *Node) handleReceivedData(buffer []byte) error {
	// decrypt packet and extract peers
	var (
		localID     crypto.ShortID
		peerID      crypto.ShortID
		fromChannel bool
		priority    bool
		body        []byte
	)
	localID, body, ok, err := crypto.ParseHandshakePacket(n.keystore, buffer)
	if err != nil {
		return err
	}
	if !ok {
		var cid ChannelID
		copy(cid[:], buffer[:32])
		cr, found := n.channelsByID.Get(cid)
		if !found {
			logger.Printf(logger.DBG, "[node] datagram for unknown key id %s", crypto.ShortID(cid))
			return nil
		}
		priority = cr.priority
		if body, err = cr.channel.Decrypt(buffer, priority); err != nil {
			return err
		}
		cr.channel.SetReady()
		cr.channel.ResetDropTimeout()
		localID = cr.channel.LocalID()
		peerID = cr.channel.PeerID()
		fromChannel = true
	}

	// parse packet
	packet, err := message.DecodePacket(body)
	if err != nil {
		return ErrInvalidPacket
	}

	// validate packet
	peerID, accepted, err := n.checkPacket(packet, localID, peerID, fromChannel, priority)
	if err != nil {
		return err
	}
	if !accepted {
		// repeated packet: drop silently
		return nil
	}

	// process message(s)
	for _, msg := range packet.Messages {
		if err = n.processMessage(localID, peerID, msg, priority); err != nil {
			return err
		}
	}
	return nil
}

// checkPacket validates an incoming packet: source resolution,
// signature, reinit dates, seqno window and confirmations (see the
// respective state holders). A rejected duplicate returns ok=false
// without an error.
func (n *Node) checkPacket(packet *message.PacketContents, localID, channelPeer crypto.ShortID,
	fromChannel, priority bool) (peerID crypto.ShortID, ok bool, err error) {

	peers, err := n.getPeers(localID)
	if err != nil {
		return
	}

	// resolve packet source
	switch {
	case fromChannel:
		if packet.From != nil || packet.FromShort != nil {
			err = ErrExplicitSourceForChannel
			return
		}
		peerID = channelPeer

	case packet.From != nil:
		peerID = packet.From.Short()
		if packet.FromShort != nil && *packet.FromShort != peerID {
			err = ErrInvalidPeerID
			return
		}
		if packet.Signature == nil {
			if n.options.PacketSignatureRequired {
				err = message.ErrSignatureNotFound
				return
			}
		} else if err = packet.VerifySignature(packet.From); err != nil {
			return
		}
		if packet.Address != nil {
			if addr := packet.Address.BestAddr(); addr != nil {
				if _, err = n.AddPeer(localID, peerID, addr, packet.From); err != nil {
					return
				}
			}
		}

	case packet.FromShort != nil:
		peerID = *packet.FromShort

	default:
		err = ErrNoKeyDataInPacket
		return
	}

	// look up peer state
	if fromChannel {
		if _, found := n.channelsByPeers.Get(peerID); !found {
			err = ErrUnknownChannel
			return
		}
	}
	peer, found := peers.Get(peerID)
	if !found {
		err = ErrUnknownPeer
		return
	}

	// verify against the stored peer key when the sender key was not
	// part of the packet
	if packet.From == nil && packet.Signature != nil {
		if err = packet.VerifySignature(peer.FullID()); err != nil {
			return
		}
	} else if !fromChannel && packet.From == nil && packet.Signature == nil && n.options.PacketSignatureRequired {
		err = message.ErrSignatureNotFound
		return
	}

	// check reinit dates
	if rd := packet.ReinitDates; rd != nil {
		// Target is the sender's view of our reinit date
		if rd.Target != 0 {
			ours := peer.Receiver().ReinitDate()
			switch {
			case rd.Target > ours:
				err = ErrDstReinitTooNew
				return
			case rd.Target < ours:
				// prod the peer into refreshing its view
				if serr := n.sendMessage(localID, peerID, &message.Nop{}, false); serr != nil {
					logger.Println(logger.DBG, "[node] nop send failed: "+serr.Error())
				}
				err = ErrDstReinitTooOld
				return
			}
		}
		// Local is the sender's own reinit date
		known := peer.Sender().ReinitDate()
		switch {
		case rd.Local > known:
			if rd.Local > util.Now()+n.options.ClockToleranceSec {
				err = ErrSrcReinitTooNew
				return
			}
			peer.Sender().SetReinitDate(rd.Local)
			if known != 0 {
				// peer restarted: all seqno state is stale
				peer.Sender().ResetHistories()
				peer.Receiver().ResetHistories()
			}
		case rd.Local < known:
			err = ErrSrcReinitTooOld
			return
		}
	}

	// check packet seqno against the receive window
	if packet.Seqno != nil {
		if !peer.Receiver().History(priority).DeliverPacket(*packet.Seqno) {
			return peerID, false, nil
		}
	}

	// check confirmation seqno
	if packet.ConfirmSeqno != nil {
		if *packet.ConfirmSeqno > peer.Sender().History(priority).Seqno() {
			err = ErrConfirmationSeqnoTooNew
			return
		}
	}
	return peerID, true, nil
}

//----------------------------------------------------------------------
// Message dispatch
//----------------------------------------------------------------------

// processMessage dispatches one inner message; Part fragments are
// collected first and the reassembled message is dispatched when
// complete.
func (n *Node) processMessage(localID, peerID crypto.ShortID, msg message.Message, priority bool) error {
	if part, isPart := msg.(*message.Part); isPart {
		assembled, err := n.processMessagePart(part)
		if err != nil || assembled == nil {
			return err
		}
		inner, err := message.DecodeMessage(assembled)
		if err != nil {
			return ErrInvalidPacket
		}
		if _, nested := inner.(*message.Part); nested {
			return ErrUnknownMessage
		}
		return n.dispatchMessage(localID, peerID, inner, priority)
	}
	return n.dispatchMessage(localID, peerID, msg, priority)
}

// dispatchMessage handles one complete message.
func (n *Node) dispatchMessage(localID, peerID crypto.ShortID, msg message.Message, priority bool) error {
	switch m := msg.(type) {
	case *message.Nop:
		return nil

	case *message.CreateChannel:
		return n.createChannel(localID, peerID, m.Key, m.Date, ContextCreateChannel)

	case *message.ConfirmChannel:
		return n.createChannel(localID, peerID, m.Key, m.Date, ContextConfirmChannel)

	case *message.Custom:
		for _, s := range n.subscribers {
			consumed, err := s.OnCustom(localID, peerID, m.Data)
			if err != nil {
				return err
			}
			if consumed {
				return nil
			}
		}
		return ErrNoSubscribersForCustomMessage

	case *message.Query:
		for _, s := range n.subscribers {
			result, err := s.OnQuery(localID, peerID, m.Query)
			if err != nil {
				return err
			}
			if result == nil || !result.Consumed {
				continue
			}
			if result.Answer != nil {
				return n.sendMessage(localID, peerID, &message.Answer{
					QueryID: m.QueryID,
					Answer:  result.Answer,
				}, priority)
			}
			return nil
		}
		return ErrNoSubscribersForQuery

	case *message.Answer:
		if !n.queries.UpdateQuery(QueryID(m.QueryID), util.Clone(m.Answer)) {
			return ErrUnknownQueryAnswer
		}
		return nil

	default:
		return ErrUnknownMessage
	}
}

// processMessagePart merges one fragment into its transfer; the first
// fragment creates the transfer and its janitor. On completion the
// verified buffer is returned and the transfer removed.
func (n *Node) processMessagePart(part *message.Part) ([]byte, error) {
	if part.TotalSize <= 0 {
		return nil, ErrTransferPartOutOfRange
	}
	id := TransferID(part.Hash)
	transfer, created := n.transfers.PutIfAbsent(id, NewTransfer(int(part.TotalSize)))
	if created {
		go n.transferJanitor(id, transfer)
	}
	transfer.Refresh()

	data, err := transfer.AddPart(int(part.Offset), part.Data, id)
	if err != nil {
		n.transfers.Delete(id)
		return nil, err
	}
	if data != nil {
		n.transfers.Delete(id)
	}
	return data, nil
}

// transferJanitor removes a reassembly that sees no fragment for a
// full transfer timeout.
func (n *Node) transferJanitor(id TransferID, transfer *Transfer) {
	timeout := n.options.TransferTimeoutSec
	tick := time.NewTicker(time.Duration(timeout) * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-tick.C:
		}
		if !transfer.Expired(timeout) {
			continue
		}
		if _, ok := n.transfers.Delete(id); ok {
			logger.Printf(logger.DBG, "[node] transfer %s timed out", crypto.ShortID(id))
		}
		return
	}
}

//----------------------------------------------------------------------
// Channel management
//----------------------------------------------------------------------

// createChannel installs (or confirms) the channel with a peer. The
// by-id and by-peer tables are rebound as one step; old lookup ids are
// removed only after the new ones are installed.
func (n *Node) createChannel(localID, peerID crypto.ShortID, peerKey [32]byte, date int32,
	cctx ChannelCreationContext) error {

	peers, err := n.getPeers(localID)
	if err != nil {
		return err
	}
	peer, ok := peers.Get(peerID)
	if !ok {
		return ErrUnknownPeerInChannel
	}

	err = n.channelsByPeers.Process(func() error {
		old, exists := n.channelsByPeers.GetUnlocked(peerID)
		if exists && old.IsStillValid(peerKey, date) {
			if cctx == ContextConfirmChannel {
				old.SetReady()
			}
			return nil
		}
		channel, cerr := NewChannel(localID, peerID, peer.ChannelKey(), peerKey, date, cctx)
		if cerr != nil {
			return cerr
		}
		n.channelsByPeers.PutUnlocked(peerID, channel)
		n.channelsByID.Put(channel.OrdinaryInID(), &channelReceiver{channel: channel})
		n.channelsByID.Put(channel.PriorityInID(), &channelReceiver{channel: channel, priority: true})
		if exists {
			// a rebuild with unchanged keys reuses the same ids
			if old.OrdinaryInID() != channel.OrdinaryInID() {
				n.channelsByID.Delete(old.OrdinaryInID())
			}
			if old.PriorityInID() != channel.PriorityInID() {
				n.channelsByID.Delete(old.PriorityInID())
			}
		}
		return nil
	})
	if err == nil {
		logger.Printf(logger.DBG, "[node] channel %s: %s -> %s", cctx, localID, peerID)
	}
	return err
}

//----------------------------------------------------------------------
// Send path
//----------------------------------------------------------------------

// sendMessage frames and enqueues a message for a peer. Until the
// channel is ready, packets use handshake framing and bootstrap the
// channel with an additional CreateChannel/ConfirmChannel message.
// Oversized messages are split into Part fragments.
func (n *Node) sendMessage(localID, peerID crypto.ShortID, msg message.Message, priority bool) error {
	switch msg.(type) {
	case *message.Part:
		// fragments are built here, never passed in
		return ErrUnexpectedMessageToSend
	}
	peers, err := n.getPeers(localID)
	if err != nil {
		return err
	}
	peer, ok := peers.Get(peerID)
	if !ok {
		return ErrUnknownPeer
	}
	localKey, err := n.keystore.KeyByID(localID)
	if err != nil {
		return err
	}

	// determine framing and channel bootstrap
	var additional message.Message
	channel, hasChannel := n.channelsByPeers.Get(peerID)
	switch {
	case hasChannel && channel.Ready():
		// channel framing, nothing extra

	case hasChannel:
		logger.Printf(logger.DBG, "[node] confirm channel %s -> %s", localID, peerID)
		additional = &message.ConfirmChannel{
			Key:     peer.ChannelKey().Public(),
			PeerKey: channel.PeerChannelKey(),
			Date:    channel.PeerChannelDate(),
		}
		channel = nil

	default:
		logger.Printf(logger.DBG, "[node] create channel %s -> %s", localID, peerID)
		additional = &message.CreateChannel{
			Key:  peer.ChannelKey().Public(),
			Date: util.Now(),
		}
		channel = nil
	}

	// priority framing needs a ready channel; demote once too many
	// priority packets went unconfirmed
	if priority && (channel == nil || peer.DemotePriority()) {
		priority = false
	}

	size := msg.Size()
	if additional != nil {
		size += additional.Size()
	}
	if size <= message.MaxMessageSize {
		msgs := []message.Message{msg}
		if additional != nil {
			msgs = []message.Message{additional, msg}
		}
		return n.sendPacket(localKey, peerID, peer, channel, priority, msgs)
	}

	// split the message into parts carrying the hash of the whole
	const partOverhead = 48
	data := message.EncodeMessage(msg)
	hash := sha256.Sum256(data)
	offset := 0
	for offset < len(data) {
		maxPayload := message.MaxMessageSize - partOverhead
		if offset == 0 && additional != nil {
			maxPayload -= additional.Size()
		}
		if rest := len(data) - offset; rest < maxPayload {
			maxPayload = rest
		}
		part := &message.Part{
			Hash:      hash,
			TotalSize: int32(len(data)),
			Offset:    int32(offset),
			Data:      data[offset : offset+maxPayload],
		}
		msgs := []message.Message{part}
		if offset == 0 && additional != nil {
			msgs = []message.Message{additional, part}
		}
		if err = n.sendPacket(localKey, peerID, peer, channel, priority, msgs); err != nil {
			return err
		}
		offset += maxPayload
	}
	return nil
}

// sendPacket builds, encrypts and enqueues one outgoing packet. A nil
// channel selects handshake framing with sender key, reinit dates and
// signature.
func (n *Node) sendPacket(localKey *crypto.StoredKey, peerID crypto.ShortID, peer *Peer,
	channel *Channel, priority bool, msgs []message.Message) error {

	packet := message.NewPacketContents()
	packet.Messages = msgs
	packet.Address = n.BuildAddressList(util.Now() + n.options.AddressListTimeoutSec)
	seqno := peer.Sender().History(priority).Bump()
	packet.Seqno = &seqno
	confirm := peer.Receiver().History(priority).Seqno()
	packet.ConfirmSeqno = &confirm

	if channel == nil {
		packet.From = localKey.FullID()
		packet.ReinitDates = &message.ReinitDates{
			Local:  peer.Receiver().ReinitDate(),
			Target: peer.Sender().ReinitDate(),
		}
		if err := packet.Sign(localKey); err != nil {
			return err
		}
	}
	data, err := packet.MarshalBinary()
	if err != nil {
		return err
	}
	var out []byte
	if channel != nil {
		out, err = channel.Encrypt(data, priority)
	} else {
		out, err = crypto.BuildHandshakePacket(peerID, peer.FullID(), data)
	}
	if err != nil {
		return err
	}
	if err = n.endpoint.Send(&transport.Packet{Dest: peer.IPAddress(), Data: out}); err != nil {
		logger.Println(logger.DBG, "[node] send failed: "+err.Error())
		return ErrFailedToSendPacket
	}
	return nil
}

// BuildAddressList advertises the node endpoint.
func (n *Node) BuildAddressList(expireAt int32) *message.AddressList {
	return &message.AddressList{
		Addrs:      []*util.Address{n.addr},
		Version:    util.Now(),
		ReinitDate: n.startTime,
		Priority:   0,
		ExpireAt:   expireAt,
	}
}

//----------------------------------------------------------------------
// Public messaging surface
//----------------------------------------------------------------------

// SendCustomMessage enqueues an application datagram for a peer.
// Delivery failures after queuing are not reported (UDP is lossy).
func (n *Node) SendCustomMessage(localID, peerID crypto.ShortID, data []byte) error {
	return n.sendMessage(localID, peerID, &message.Custom{
		Data: util.Clone(data),
	}, n.options.ForceUsePriorityChannels)
}

// ComputeQueryTimeout raises a measured roundtrip (ms) to at least the
// configured minimum; zero selects the default deadline (the configured
// maximum). Larger roundtrips are not capped.
func (n *Node) ComputeQueryTimeout(roundtrip uint64) uint64 {
	timeout := roundtrip
	if timeout == 0 {
		timeout = n.options.QueryMaxTimeoutMs
	}
	if timeout < n.options.QueryMinTimeoutMs {
		timeout = n.options.QueryMinTimeoutMs
	}
	return timeout
}

// Query sends a query to a peer and waits for the answer. A nil
// answer without error means the query timed out or was dropped.
func (n *Node) Query(ctx context.Context, localID, peerID crypto.ShortID, query []byte, timeoutMs uint64) ([]byte, error) {
	return n.QueryWithPrefix(ctx, localID, peerID, nil, query, timeoutMs)
}

// QueryWithPrefix sends a query with an opaque prefix prepended to the
// query body.
func (n *Node) QueryWithPrefix(ctx context.Context, localID, peerID crypto.ShortID,
	prefix, query []byte, timeoutMs uint64) ([]byte, error) {

	if !n.running {
		return nil, ErrNotRunning
	}
	var id QueryID
	util.RndArray(id[:])
	body := make([]byte, 0, len(prefix)+len(query))
	body = append(body, prefix...)
	body = append(body, query...)

	pending := n.queries.AddQuery(id)
	if err := n.sendMessage(localID, peerID, &message.Query{
		QueryID: [32]byte(id),
		Query:   body,
	}, n.options.ForceUsePriorityChannels); err != nil {
		n.queries.UpdateQuery(id, nil)
		return nil, err
	}
	channel, _ := n.channelsByPeers.Get(peerID)

	// drop the query after its deadline
	timeout := n.ComputeQueryTimeout(timeoutMs)
	go func() {
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(time.Duration(timeout) * time.Millisecond):
		}
		if n.queries.UpdateQuery(id, nil) {
			logger.Printf(logger.DBG, "[node] query %s timed out", crypto.ShortID(id))
		}
	}()

	answer, err := pending.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		// unanswered round: arm the drop timeout and reset the peer
		// once a previously armed deadline expired
		if channel != nil {
			now := util.Now()
			was := channel.UpdateDropTimeout(now, int32(n.options.QueryMaxTimeoutMs/1000))
			if was > 0 && was < now {
				if rerr := n.resetPeer(localID, peerID); rerr != nil {
					logger.Println(logger.DBG, "[node] reset failed: "+rerr.Error())
				}
			}
		}
		return nil, nil
	}
	return answer, nil
}
