// Package event defines the wire-level event vocabulary shared by the
// coordination registries, the dispatch layer, and the transport.
package event

// Inbound event names (client → server).
const (
	JoinQueue     = "joinQueue"
	LeaveQueue    = "leaveQueue"
	SetNickname   = "setNickname"
	JoinRoom      = "join-room"
	Message       = "message"
	BroadcastData = "broadcast-data"
)

// Outbound event names (server → client). JoinRoom, Message, and
// BroadcastData reuse their inbound names for acks and relays.
const (
	QueueStatus    = "queueStatus"
	MatchFound     = "matchFound"
	QueueUpdate    = "queueUpdate"
	RoomMemberJoin = "room-member-join"
	RoomMemberLeft = "room-member-left"
	RoomMembers    = "update-room-members"
)

// Queue status values carried by QueueStatus payloads.
const (
	StatusWaiting = "waiting"
	StatusLeft    = "left"
	StatusTimeout = "timeout"
)

// JoinQueuePayload is the joinQueue request body. Both fields are
// optional; an empty name falls back to a name derived from the
// connection id.
type JoinQueuePayload struct {
	Name       string `json:"name,omitempty"`
	SkillLevel int    `json:"skillLevel,omitempty"`
}

// MessagePayload is the inbound message request body. An empty Room
// addresses every connected client.
type MessagePayload struct {
	Text string `json:"text"`
	Room string `json:"room"`
}

// BroadcastDataPayload is the inbound broadcast-data request body.
type BroadcastDataPayload struct {
	Payload string `json:"payload"`
	Room    string `json:"room"`
}

// QueueStatusPayload reports a queue outcome to a single client.
type QueueStatusPayload struct {
	Status      string `json:"status"`
	QueueLength int    `json:"queueLength,omitempty"`
	Message     string `json:"message,omitempty"`
}

// QueueUpdatePayload carries the current queue length to all clients.
type QueueUpdatePayload struct {
	QueueLength int `json:"queueLength"`
}

// MatchPlayer identifies one participant of a formed match.
type MatchPlayer struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
}

// MatchFoundPayload is sent to each player of a newly formed match.
type MatchFoundPayload struct {
	MatchID   string        `json:"matchId"`
	Opponents []string      `json:"opponents"`
	Players   []MatchPlayer `json:"players"`
}

// RoomJoinedPayload acknowledges a join to the joiner only.
type RoomJoinedPayload struct {
	Room         string `json:"room"`
	ControllerID int    `json:"controllerId"`
}

// MemberJoinPayload announces a new member to the rest of the room.
type MemberJoinPayload struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	ControllerID int    `json:"controllerId"`
}

// MemberLeftPayload announces a departure to the remaining members.
type MemberLeftPayload struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
}

// RoomMember is one row of a full membership snapshot.
type RoomMember struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	ControllerID int    `json:"controllerId"`
}

// RoomMembersPayload is the full membership snapshot sent to the whole
// room after every membership change.
type RoomMembersPayload struct {
	Room    string       `json:"room"`
	Members []RoomMember `json:"members"`
}

// ChatPayload is an outbound message delivery tagged with its sender.
type ChatPayload struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	Text         string `json:"text"`
}

// DataPayload is an outbound broadcast-data delivery tagged with its
// sender.
type DataPayload struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	Payload      string `json:"payload"`
}

// Outbound describes a single delivery through the transport. The
// registries return Outbound slices in emission order and the router
// relays them without reordering.
type Outbound struct {
	// To lists the recipient connection ids. A nil To addresses every
	// connected client.
	To    []string
	Event string
	Data  any
}

// ToOne addresses a single connection.
func ToOne(connID, name string, data any) Outbound {
	return Outbound{To: []string{connID}, Event: name, Data: data}
}

// ToMany addresses an explicit recipient list.
func ToMany(connIDs []string, name string, data any) Outbound {
	return Outbound{To: connIDs, Event: name, Data: data}
}

// ToAll addresses every connected client.
func ToAll(name string, data any) Outbound {
	return Outbound{Event: name, Data: data}
}
