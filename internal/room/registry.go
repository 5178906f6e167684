// Package room tracks named rooms, their ordered member lists, and the
// per-room controller-identifier allocator. A connection is a member of
// at most one room at a time; rooms are created lazily on first join
// and destroyed the instant they empty.
package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ridgeline-games/lobby/internal/event"
	"github.com/ridgeline-games/lobby/internal/identity"
)

// room is one named session group. members preserves insertion order;
// controllers holds exactly the current members. nextController only
// ever grows for the lifetime of the room, so a controller id is never
// reissued while its original holder remains a member.
type room struct {
	name           string
	members        []string
	controllers    map[string]int
	nextController int
}

func (r *room) memberIDs() []string {
	ids := make([]string, len(r.members))
	copy(ids, r.members)
	return ids
}

func (r *room) othersThan(connID string) []string {
	others := make([]string, 0, len(r.members))
	for _, id := range r.members {
		if id != connID {
			others = append(others, id)
		}
	}
	return others
}

// Registry is the room membership table. All methods are safe for
// concurrent use.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	index  map[string]string // conn id → current room name
	names  *identity.Directory
	logger *zap.Logger
}

// NewRegistry creates an empty Registry resolving display names through
// the given directory.
func NewRegistry(names *identity.Directory, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		index:  make(map[string]string),
		names:  names,
		logger: logger,
	}
}

// Join places connID into roomName, implicitly leaving any prior room
// first. A genuine join appends the member and assigns the next
// controller id; rejoining the same room issues no new id but still
// re-acknowledges and re-broadcasts the snapshot.
func (r *Registry) Join(connID, roomName string) []event.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.Outbound
	if current, ok := r.index[connID]; ok && current != roomName {
		out = append(out, r.leaveLocked(connID)...)
	}

	rm, ok := r.rooms[roomName]
	if !ok {
		rm = &room{name: roomName, controllers: make(map[string]int)}
		r.rooms[roomName] = rm
		r.logger.Info("room created", zap.String("room", roomName))
	}

	if _, member := rm.controllers[connID]; !member {
		controllerID := rm.nextController
		rm.nextController++
		rm.members = append(rm.members, connID)
		rm.controllers[connID] = controllerID

		if others := rm.othersThan(connID); len(others) > 0 {
			out = append(out, event.ToMany(others, event.RoomMemberJoin, event.MemberJoinPayload{
				ConnectionID: connID,
				Name:         r.names.NameOf(connID),
				ControllerID: controllerID,
			}))
		}
		r.logger.Info("member joined room",
			zap.String("room", roomName),
			zap.String("conn_id", connID),
			zap.Int("controller_id", controllerID),
		)
	}
	r.index[connID] = roomName

	out = append(out,
		event.ToOne(connID, event.JoinRoom, event.RoomJoinedPayload{
			Room:         roomName,
			ControllerID: rm.controllers[connID],
		}),
		event.ToMany(rm.memberIDs(), event.RoomMembers, r.snapshotLocked(rm)),
	)
	return out
}

// Leave removes connID from its current room, if any. The remaining
// members learn of the departure and receive a fresh snapshot; an
// emptied room is destroyed.
func (r *Registry) Leave(connID string) []event.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID)
}

func (r *Registry) leaveLocked(connID string) []event.Outbound {
	roomName, ok := r.index[connID]
	if !ok {
		return nil
	}
	rm := r.rooms[roomName]

	for i, id := range rm.members {
		if id == connID {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}
	delete(rm.controllers, connID)
	delete(r.index, connID)

	r.logger.Info("member left room",
		zap.String("room", roomName),
		zap.String("conn_id", connID),
	)

	if len(rm.members) == 0 {
		delete(r.rooms, roomName)
		r.logger.Info("room destroyed", zap.String("room", roomName))
		return nil
	}

	remaining := rm.memberIDs()
	return []event.Outbound{
		event.ToMany(remaining, event.RoomMemberLeft, event.MemberLeftPayload{
			ConnectionID: connID,
			Name:         r.names.NameOf(connID),
		}),
		event.ToMany(remaining, event.RoomMembers, r.snapshotLocked(rm)),
	}
}

// BroadcastData forwards payload to every member of the sender's
// current room, the sender included. A sender without a room is dropped
// with a diagnostic.
func (r *Registry) BroadcastData(connID, payload string) []event.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok := r.index[connID]
	if !ok {
		r.logger.Warn("broadcast-data from connection with no room",
			zap.String("conn_id", connID),
		)
		return nil
	}
	rm := r.rooms[roomName]

	return []event.Outbound{event.ToMany(rm.memberIDs(), event.BroadcastData, event.DataPayload{
		ConnectionID: connID,
		Name:         r.names.NameOf(connID),
		Payload:      payload,
	})}
}

// BroadcastMessage delivers text either globally (empty roomName) or to
// the named room. Room-targeted messages require the sender to be a
// member of that room; violations are dropped with a diagnostic.
func (r *Registry) BroadcastMessage(connID, text, roomName string) []event.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat := event.ChatPayload{
		ConnectionID: connID,
		Name:         r.names.NameOf(connID),
		Text:         text,
	}

	if roomName == "" {
		return []event.Outbound{event.ToAll(event.Message, chat)}
	}

	if current, ok := r.index[connID]; !ok || current != roomName {
		r.logger.Warn("message to room sender is not a member of",
			zap.String("conn_id", connID),
			zap.String("room", roomName),
		)
		return nil
	}
	return []event.Outbound{event.ToMany(r.rooms[roomName].memberIDs(), event.Message, chat)}
}

// RoomOf returns the sender's current room name, if any.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.index[connID]
	return name, ok
}

// ControllerID returns connID's controller id within its current room.
func (r *Registry) ControllerID(connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok := r.index[connID]
	if !ok {
		return 0, false
	}
	id, ok := r.rooms[roomName].controllers[connID]
	return id, ok
}

// Members returns the ordered member list of roomName, or nil when the
// room does not exist.
func (r *Registry) Members(roomName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return nil
	}
	return rm.memberIDs()
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) snapshotLocked(rm *room) event.RoomMembersPayload {
	members := make([]event.RoomMember, 0, len(rm.members))
	for _, id := range rm.members {
		members = append(members, event.RoomMember{
			ConnectionID: id,
			Name:         r.names.NameOf(id),
			ControllerID: rm.controllers[id],
		})
	}
	return event.RoomMembersPayload{Room: rm.name, Members: members}
}
