// Package subscription reference-counts local interest in server-side rooms.
//
// The server is asked to join a room when its count goes from 0 to 1 and to
// leave it when the count returns to 0. Zero entries are removed, so the
// table only ever holds rooms somebody is watching.
package subscription

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Outbound instruction topics.
const (
	InstructionJoin  = "join"
	InstructionLeave = "leave"
)

// Emitter sends fire-and-forget instructions over the push channel.
// SocketID names the current session, empty when disconnected.
type Emitter interface {
	Emit(topic string, payload any) error
	SocketID() string
}

// RoomPayload is the body of join and leave instructions.
type RoomPayload struct {
	Room string `json:"room"`
}

const assetRoomPrefix = "crypto:"

// RoomForAsset returns the room carrying updates for one asset.
func RoomForAsset(assetID string) string {
	return assetRoomPrefix + assetID
}

// AssetForRoom is the inverse of RoomForAsset.
func AssetForRoom(room string) (string, bool) {
	id, ok := strings.CutPrefix(room, assetRoomPrefix)
	return id, ok && id != ""
}

// Registry tracks room refcounts.
type Registry struct {
	emitter Emitter
	logger  *slog.Logger

	// Held across Emit so join/leave for a room go out in count order.
	mu     sync.Mutex
	counts map[string]int
	joined map[string]string // room -> session its join was sent on
}

// NewRegistry creates an empty registry sending instructions through emitter.
func NewRegistry(emitter Emitter, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		emitter: emitter,
		logger:  logger.With("component", "subscription"),
		counts:  make(map[string]int),
		joined:  make(map[string]string),
	}
}

// Acquire registers one interest in room and returns the new count.
func (r *Registry) Acquire(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counts[room]++
	n := r.counts[room]
	if n == 1 {
		r.send(InstructionJoin, room)
	}
	return n
}

// Release drops one interest in room and returns the remaining count.
// Releasing a room that is not held is a no-op.
func (r *Registry) Release(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.counts[room]
	if !ok {
		r.logger.Debug("release of unheld room ignored", "room", room)
		return 0
	}

	n--
	if n > 0 {
		r.counts[room] = n
		return n
	}

	delete(r.counts, room)
	delete(r.joined, room)
	r.send(InstructionLeave, room)
	return 0
}

// Count returns the current refcount for room.
func (r *Registry) Count(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[room]
}

// Rooms returns every held room, sorted.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.counts))
	for room := range r.counts {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// Rejoin sends join for every held room not yet joined on the current
// session, without touching counts. A new channel session starts with no
// server-side rooms, so this is called after each connection. It returns
// the number of rooms re-joined.
func (r *Registry) Rejoin() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sid := r.emitter.SocketID()
	rooms := make([]string, 0, len(r.counts))
	for room := range r.counts {
		if sid != "" && r.joined[room] == sid {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)

	for _, room := range rooms {
		r.send(InstructionJoin, room)
	}
	if len(rooms) > 0 {
		r.logger.Info("rooms rejoined", "count", len(rooms))
	}
	return len(rooms)
}

// send emits one instruction. A successful join records the session it
// went out on; the id is read first so a session change during the emit
// leaves the room marked for Rejoin.
func (r *Registry) send(instruction, room string) {
	sid := r.emitter.SocketID()
	if err := r.emitter.Emit(instruction, RoomPayload{Room: room}); err != nil {
		if instruction == InstructionJoin {
			delete(r.joined, room)
		}
		// The count stands; Rejoin restores the room on the next session.
		r.logger.Debug("room instruction not sent",
			"instruction", instruction,
			"room", room,
			"error", err,
		)
		return
	}
	if instruction == InstructionJoin {
		r.joined[room] = sid
	}
}
