package rtc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Message is a payload delivered through MemoryProvider.Broadcast.
type Message struct {
	Room    string
	Sender  string
	Payload []byte
}

// MemoryProvider hosts rooms in process. It backs local development when no
// RTC host is configured; rooms vanish on restart.
type MemoryProvider struct {
	mu       sync.Mutex
	rooms    map[string]map[string]struct{}
	messages []Message
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{rooms: make(map[string]map[string]struct{})}
}

func (p *MemoryProvider) CreateRoom(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rooms[name]; !ok {
		p.rooms[name] = make(map[string]struct{})
	}
	return nil
}

func (p *MemoryProvider) IssueToken(room, identity string, role Role) (string, error) {
	return fmt.Sprintf("mem:%s:%s:%s:%s", room, identity, role, uuid.NewString()), nil
}

// Connect places identity into room, as a client holding a credential would.
func (p *MemoryProvider) Connect(room, identity string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	occupants, ok := p.rooms[room]
	if !ok {
		return ErrRoomNotFound
	}
	occupants[identity] = struct{}{}
	return nil
}

// Disconnect removes identity from room.
func (p *MemoryProvider) Disconnect(room, identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.rooms[room], identity)
}

func (p *MemoryProvider) ListOccupants(_ context.Context, room string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	occupants, ok := p.rooms[room]
	if !ok {
		return nil, ErrRoomNotFound
	}

	ids := make([]string, 0, len(occupants))
	for id := range occupants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *MemoryProvider) DeleteRoom(_ context.Context, room string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rooms[room]; !ok {
		return ErrRoomNotFound
	}
	delete(p.rooms, room)
	return nil
}

func (p *MemoryProvider) Broadcast(_ context.Context, room, sender string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rooms[room]; !ok {
		return ErrRoomNotFound
	}
	p.messages = append(p.messages, Message{Room: room, Sender: sender, Payload: append([]byte(nil), payload...)})
	return nil
}

// Messages returns every payload broadcast so far.
func (p *MemoryProvider) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Message(nil), p.messages...)
}
