// Package board holds the in-memory message sequence shared by every
// request handler.
package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags a message as text or as a reference to an uploaded file.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Message is an immutable board entry. For KindImage, Content is the
// stored filename, never the bytes.
type Message struct {
	ID        uuid.UUID
	Kind      Kind
	Content   string
	CreatedAt time.Time
}

// Board is an append-only, arrival-ordered message list safe for
// concurrent use.
//
// Nothing is ever evicted: memory grows with every append for the lifetime
// of the process, and a restart starts from an empty board.
type Board struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// New returns an empty board.
func New() *Board {
	return &Board{
		messages: make([]Message, 0),
		now:      time.Now,
	}
}

// Append records a message at the end of the sequence and returns it.
func (b *Board) Append(kind Kind, content string) Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := Message{
		ID:        uuid.New(),
		Kind:      kind,
		Content:   content,
		CreatedAt: b.now().UTC(),
	}
	b.messages = append(b.messages, msg)
	return msg
}

// Snapshot returns a copy of every message in arrival order.
func (b *Board) Snapshot() []Message {
	return b.Recent(0)
}

// Recent returns a copy of the last limit messages in arrival order.
// A limit <= 0 returns all of them.
func (b *Board) Recent(limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if limit > 0 && len(b.messages) > limit {
		start = len(b.messages) - limit
	}

	out := make([]Message, len(b.messages)-start)
	copy(out, b.messages[start:])
	return out
}

// Len returns the number of messages on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
