// Package identity maps live connections to display names. The
// directory's lifecycle is independent of queue and room membership: a
// name may be set before or after joining anything, and missing entries
// render as a deterministic fallback.
package identity

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FallbackName derives a display name from a connection id. It is a
// pure function so callers (and tests) can predict the rendered name of
// an unnamed connection.
func FallbackName(connID string) string {
	if len(connID) > 4 {
		connID = connID[:4]
	}
	return "Player_" + connID
}

// Directory is a concurrency-safe connection-id → display-name table.
type Directory struct {
	mu     sync.RWMutex
	names  map[string]string
	logger *zap.Logger
}

// NewDirectory creates an empty Directory.
func NewDirectory(logger *zap.Logger) *Directory {
	return &Directory{
		names:  make(map[string]string),
		logger: logger,
	}
}

// SetName stores the trimmed display name for connID. A name that is
// empty after trimming is rejected with a diagnostic and any existing
// name is left unchanged.
func (d *Directory) SetName(connID, raw string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		d.logger.Warn("rejecting empty display name",
			zap.String("conn_id", connID),
		)
		return
	}

	d.mu.Lock()
	d.names[connID] = name
	d.mu.Unlock()

	d.logger.Debug("display name set",
		zap.String("conn_id", connID),
		zap.String("name", name),
	)
}

// NameOf returns the stored display name for connID, or the fallback
// name when none has been set.
func (d *Directory) NameOf(connID string) string {
	d.mu.RLock()
	name, ok := d.names[connID]
	d.mu.RUnlock()

	if !ok {
		return FallbackName(connID)
	}
	return name
}

// HasName reports whether an explicit name has been set for connID.
func (d *Directory) HasName(connID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.names[connID]
	return ok
}

// Remove deletes the entry for connID. Called on disconnect; a missing
// entry is a no-op.
func (d *Directory) Remove(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.names, connID)
}

// Len returns the number of stored names.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}
