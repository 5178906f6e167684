// Package router dispatches inbound client events and transport
// lifecycle notifications to the coordination registries, and relays
// the outbound messages they produce. One coarse mutex serializes every
// handler and the periodic tick, standing in for the single-threaded
// reactor the protocol assumes.
package router

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridgeline-games/lobby/internal/event"
	"github.com/ridgeline-games/lobby/internal/identity"
	"github.com/ridgeline-games/lobby/internal/match"
	"github.com/ridgeline-games/lobby/internal/room"
)

// Sender delivers outbound events to connected clients. A nil recipient
// list in event.Outbound maps to Broadcast.
type Sender interface {
	Send(connID, name string, data any)
	Broadcast(name string, data any)
}

// Router maps each inbound event to exactly one registry call.
type Router struct {
	// mu serializes event handlers, disconnect cleanup, and the tick so
	// each runs to completion before the next is considered.
	mu     sync.Mutex
	sender Sender
	queue  *match.Queue
	rooms  *room.Registry
	names  *identity.Directory
	logger *zap.Logger

	queueTimeout time.Duration
	matchTTL     time.Duration
}

// New creates a Router over the given registries.
func New(sender Sender, queue *match.Queue, rooms *room.Registry, names *identity.Directory,
	queueTimeout, matchTTL time.Duration, logger *zap.Logger) *Router {
	return &Router{
		sender:       sender,
		queue:        queue,
		rooms:        rooms,
		names:        names,
		logger:       logger,
		queueTimeout: queueTimeout,
		matchTTL:     matchTTL,
	}
}

// HandleConnect records a new connection. No registry is touched until
// the client sends its first event.
func (r *Router) HandleConnect(connID string) {
	r.logger.Info("client connected", zap.String("conn_id", connID))
}

// HandleEvent validates the payload shape for the named event and
// forwards it to the owning registry. Malformed or unknown events are
// dropped with a diagnostic and never touch registry state.
func (r *Router) HandleEvent(connID, name string, data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch name {
	case event.JoinQueue:
		var p event.JoinQueuePayload
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p); err != nil {
				r.dropMalformed(connID, name, err)
				return
			}
		}
		playerName := strings.TrimSpace(p.Name)
		if playerName == "" {
			playerName = identity.FallbackName(connID)
		}
		r.relay(r.queue.Enqueue(connID, playerName, p.SkillLevel))

	case event.LeaveQueue:
		_, msgs := r.queue.Dequeue(connID)
		r.relay(msgs)

	case event.SetNickname:
		var nickname string
		if err := json.Unmarshal(data, &nickname); err != nil {
			r.dropMalformed(connID, name, err)
			return
		}
		r.names.SetName(connID, nickname)

	case event.JoinRoom:
		var roomName string
		if err := json.Unmarshal(data, &roomName); err != nil {
			r.dropMalformed(connID, name, err)
			return
		}
		if strings.TrimSpace(roomName) == "" {
			r.logger.Warn("join-room with empty room name", zap.String("conn_id", connID))
			return
		}
		r.relay(r.rooms.Join(connID, roomName))

	case event.Message:
		var p event.MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			r.dropMalformed(connID, name, err)
			return
		}
		if strings.TrimSpace(p.Text) == "" {
			r.logger.Warn("dropping empty message", zap.String("conn_id", connID))
			return
		}
		r.relay(r.rooms.BroadcastMessage(connID, p.Text, p.Room))

	case event.BroadcastData:
		var p event.BroadcastDataPayload
		if err := json.Unmarshal(data, &p); err != nil {
			r.dropMalformed(connID, name, err)
			return
		}
		if p.Room == "" {
			r.logger.Warn("broadcast-data without a room", zap.String("conn_id", connID))
			return
		}
		r.relay(r.rooms.BroadcastData(connID, p.Payload))

	default:
		r.logger.Debug("unknown event dropped",
			zap.String("conn_id", connID),
			zap.String("event", name),
		)
	}
}

// HandleDisconnect runs full cleanup for a departed connection. The
// room leave precedes name removal so the departure broadcast still
// resolves the display name; the queue removal is silent.
func (r *Router) HandleDisconnect(connID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("client disconnected",
		zap.String("conn_id", connID),
		zap.String("reason", reason),
	)

	r.relay(r.rooms.Leave(connID))
	if r.queue.DequeueSilent(connID) {
		r.logger.Debug("removed disconnected player from queue",
			zap.String("conn_id", connID),
		)
	}
	r.names.Remove(connID)
}

// Tick drives the periodic queue-timeout sweep, opportunistic
// re-pairing, and match-record eviction.
func (r *Router) Tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.relay(r.queue.SweepTimeouts(now, r.queueTimeout))
	if evicted := r.queue.EvictMatches(now, r.matchTTL); evicted > 0 {
		r.logger.Debug("evicted stale match records", zap.Int("count", evicted))
	}
}

func (r *Router) relay(msgs []event.Outbound) {
	for _, m := range msgs {
		if m.To == nil {
			r.sender.Broadcast(m.Event, m.Data)
			continue
		}
		for _, connID := range m.To {
			r.sender.Send(connID, m.Event, m.Data)
		}
	}
}

func (r *Router) dropMalformed(connID, name string, err error) {
	r.logger.Warn("dropping malformed payload",
		zap.String("conn_id", connID),
		zap.String("event", name),
		zap.Error(err),
	)
}
