// Package match provides the matchmaking queue: an ordered waiting list
// of players seeking a 1v1 match, FIFO pairing, timeout sweeping, and
// the table of formed matches.
package match

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ridgeline-games/lobby/internal/event"
)

// Player is one queue entry. It exists only while the connection waits
// in the queue and is discarded on pairing, leave, disconnect, or
// timeout.
type Player struct {
	ConnectionID string
	Name         string
	SkillLevel   int
	JoinedAt     time.Time
}

// Match records a formed pairing. Matches are retained until evicted by
// EvictMatches.
type Match struct {
	ID        string
	Players   [2]Player
	CreatedAt time.Time
}

// Queue is the matchmaking waiting list. All methods are safe for
// concurrent use. Pairing is strictly FIFO by arrival order; the
// recorded skill level is never consulted.
type Queue struct {
	mu      sync.Mutex
	entries []Player
	matches map[string]Match
	logger  *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewQueue creates an empty Queue.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{
		matches: make(map[string]Match),
		logger:  logger,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock used for join timestamps and match
// creation times. Intended for tests.
func (q *Queue) SetNowFunc(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue adds a waiting player and runs pairing. Enqueue is
// idempotent: a connection already in the queue is not re-added, but
// the caller is still answered with its current waiting status.
func (q *Queue) Enqueue(connID, name string, skillLevel int) []event.Outbound {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.indexOfLocked(connID) >= 0 {
		q.logger.Debug("duplicate queue join ignored", zap.String("conn_id", connID))
		return []event.Outbound{event.ToOne(connID, event.QueueStatus, event.QueueStatusPayload{
			Status:      event.StatusWaiting,
			QueueLength: len(q.entries),
		})}
	}

	q.entries = append(q.entries, Player{
		ConnectionID: connID,
		Name:         name,
		SkillLevel:   skillLevel,
		JoinedAt:     q.now(),
	})
	q.logger.Info("player joined queue",
		zap.String("conn_id", connID),
		zap.String("name", name),
		zap.Int("queue_length", len(q.entries)),
	)

	out := []event.Outbound{event.ToOne(connID, event.QueueStatus, event.QueueStatusPayload{
		Status:      event.StatusWaiting,
		QueueLength: len(q.entries),
	})}
	return append(out, q.pairLocked()...)
}

// Dequeue removes connID from the queue on an explicit leave. It
// reports whether a removal occurred; on removal the leaver is told it
// left and everyone is told the new queue length.
func (q *Queue) Dequeue(connID string) (bool, []event.Outbound) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOfLocked(connID)
	if i < 0 {
		return false, nil
	}
	p := q.removeAtLocked(i)
	q.logger.Info("player left queue",
		zap.String("conn_id", connID),
		zap.String("name", p.Name),
	)

	return true, []event.Outbound{
		event.ToOne(connID, event.QueueStatus, event.QueueStatusPayload{Status: event.StatusLeft}),
		event.ToAll(event.QueueUpdate, event.QueueUpdatePayload{QueueLength: len(q.entries)}),
	}
}

// DequeueSilent removes connID without any notification. Used for
// disconnect cleanup, where the departed client can no longer be
// addressed and the remaining clients learn the new length on the next
// sweep.
func (q *Queue) DequeueSilent(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOfLocked(connID)
	if i < 0 {
		return false
	}
	q.removeAtLocked(i)
	return true
}

// SweepTimeouts evicts every entry older than timeout, pairs whatever
// remains, and refreshes the broadcast queue length. Each evicted
// player receives a timeout status.
func (q *Queue) SweepTimeouts(now time.Time, timeout time.Duration) []event.Outbound {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []event.Outbound
	kept := q.entries[:0]
	for _, p := range q.entries {
		if now.Sub(p.JoinedAt) > timeout {
			q.logger.Info("player timed out of queue",
				zap.String("conn_id", p.ConnectionID),
				zap.String("name", p.Name),
				zap.Duration("waited", now.Sub(p.JoinedAt)),
			)
			out = append(out, event.ToOne(p.ConnectionID, event.QueueStatus, event.QueueStatusPayload{
				Status:  event.StatusTimeout,
				Message: "No match found in time",
			}))
			continue
		}
		kept = append(kept, p)
	}
	q.entries = kept

	out = append(out, q.pairLocked()...)
	return append(out, event.ToAll(event.QueueUpdate, event.QueueUpdatePayload{QueueLength: len(q.entries)}))
}

// EvictMatches drops match records older than ttl and returns how many
// were removed.
func (q *Queue) EvictMatches(now time.Time, ttl time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := 0
	for id, m := range q.matches {
		if now.Sub(m.CreatedAt) > ttl {
			delete(q.matches, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// MatchCount returns the number of retained match records.
func (q *Queue) MatchCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.matches)
}

// Contains reports whether connID is currently waiting.
func (q *Queue) Contains(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexOfLocked(connID) >= 0
}

// pairLocked forms matches while at least two players wait, always
// consuming the two oldest entries. Each formed match notifies both
// players and refreshes the broadcast queue length.
func (q *Queue) pairLocked() []event.Outbound {
	var out []event.Outbound
	for len(q.entries) >= 2 {
		a, b := q.entries[0], q.entries[1]
		q.entries = q.entries[2:]

		m := Match{
			ID:        q.newMatchIDLocked(),
			Players:   [2]Player{a, b},
			CreatedAt: q.now(),
		}
		q.matches[m.ID] = m

		roster := []event.MatchPlayer{
			{ConnectionID: a.ConnectionID, Name: a.Name},
			{ConnectionID: b.ConnectionID, Name: b.Name},
		}
		out = append(out,
			event.ToOne(a.ConnectionID, event.MatchFound, event.MatchFoundPayload{
				MatchID:   m.ID,
				Opponents: []string{b.Name},
				Players:   roster,
			}),
			event.ToOne(b.ConnectionID, event.MatchFound, event.MatchFoundPayload{
				MatchID:   m.ID,
				Opponents: []string{a.Name},
				Players:   roster,
			}),
			event.ToAll(event.QueueUpdate, event.QueueUpdatePayload{QueueLength: len(q.entries)}),
		)

		q.logger.Info("match created",
			zap.String("match_id", m.ID),
			zap.String("player_a", a.Name),
			zap.String("player_b", b.Name),
		)
	}
	return out
}

// newMatchIDLocked mints a globally unique match id from the creation
// time plus a random disambiguator.
func (q *Queue) newMatchIDLocked() string {
	return fmt.Sprintf("match_%d_%04d", q.now().UnixMilli(), rand.IntN(10000))
}

func (q *Queue) indexOfLocked(connID string) int {
	for i, p := range q.entries {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

func (q *Queue) removeAtLocked(i int) Player {
	p := q.entries[i]
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return p
}
