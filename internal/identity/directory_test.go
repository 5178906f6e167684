package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "Player_abcd", FallbackName("abcdef123"))
	assert.Equal(t, "Player_ab", FallbackName("ab"))
	assert.Equal(t, "Player_", FallbackName(""))
}

func TestSetNameAndNameOf(t *testing.T) {
	d := NewDirectory(zaptest.NewLogger(t))

	d.SetName("c1", "Alice")
	assert.Equal(t, "Alice", d.NameOf("c1"))
	assert.True(t, d.HasName("c1"))
}

func TestSetNameTrimsWhitespace(t *testing.T) {
	d := NewDirectory(zaptest.NewLogger(t))

	d.SetName("c1", "  Bob  ")
	assert.Equal(t, "Bob", d.NameOf("c1"))
}

func TestSetNameRejectsEmpty(t *testing.T) {
	d := NewDirectory(zaptest.NewLogger(t))

	d.SetName("c1", "   ")
	assert.False(t, d.HasName("c1"))
	assert.Equal(t, FallbackName("c1"), d.NameOf("c1"))

	// An invalid update must not clobber an existing name.
	d.SetName("c1", "Alice")
	d.SetName("c1", "")
	assert.Equal(t, "Alice", d.NameOf("c1"))
}

func TestNameOfFallsBack(t *testing.T) {
	d := NewDirectory(zaptest.NewLogger(t))
	assert.Equal(t, "Player_conn", d.NameOf("conn-42"))
}

func TestRemove(t *testing.T) {
	d := NewDirectory(zaptest.NewLogger(t))

	d.SetName("c1", "Alice")
	d.Remove("c1")
	assert.False(t, d.HasName("c1"))
	assert.Equal(t, 0, d.Len())

	// Removing an absent entry is a no-op.
	d.Remove("c1")
}
