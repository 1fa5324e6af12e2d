// Package realtime tracks live client sockets per ticket room and fans
// messages out to them.
//
// Each registered channel gets a bounded outbound queue and one writer
// goroutine. Broadcast only enqueues, so a slow or dead socket never delays
// its siblings: a full queue or a failed write evicts that one channel.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrRegistryClosed = errors.New("realtime: registry closed")

// Channel is an accepted, bidirectional connection to one client.
// Implementations must be comparable (pointer types) since they key the room.
type Channel interface {
	Send(ctx context.Context, msg []byte) error
	Close(reason string) error
}

type Options struct {
	// QueueSize bounds the per-channel backlog; a full queue evicts.
	QueueSize int
	// WriteTimeout caps a single Send.
	WriteTimeout time.Duration
}

const (
	defaultQueueSize    = 32
	defaultWriteTimeout = 5 * time.Second
)

type Registry struct {
	log  *slog.Logger
	opts Options

	mu     sync.RWMutex
	rooms  map[uint64]*room
	closed bool

	wg sync.WaitGroup
}

type room struct {
	mu      sync.Mutex
	members map[Channel]*member
}

type member struct {
	ch  Channel
	out chan []byte
}

func New(log *slog.Logger, opts Options) *Registry {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:   log.With(slog.String("component", "realtime")),
		opts:  opts,
		rooms: make(map[uint64]*room),
	}
}

// Connect registers an already accepted channel under ticketID. Connecting the
// same channel twice is a no-op.
func (r *Registry) Connect(ticketID uint64, ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	rm, ok := r.rooms[ticketID]
	if !ok {
		rm = &room{members: make(map[Channel]*member)}
		r.rooms[ticketID] = rm
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, exists := rm.members[ch]; exists {
		return nil
	}
	m := &member{ch: ch, out: make(chan []byte, r.opts.QueueSize)}
	rm.members[ch] = m

	r.wg.Add(1)
	go r.writeLoop(ticketID, m)
	return nil
}

// Disconnect removes ch from the room. Unknown channels are ignored.
func (r *Registry) Disconnect(ticketID uint64, ch Channel) {
	r.remove(ticketID, ch)
}

// Broadcast enqueues msg for every channel registered for ticketID at call
// time and returns how many accepted it. Messages reach each channel in the
// order Broadcast was called for that ticket.
func (r *Registry) Broadcast(ticketID uint64, msg []byte) int {
	r.mu.RLock()
	rm, ok := r.rooms[ticketID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	var slow []Channel
	delivered := 0
	rm.mu.Lock()
	for ch, m := range rm.members {
		select {
		case m.out <- msg:
			delivered++
		default:
			slow = append(slow, ch)
		}
	}
	rm.mu.Unlock()

	for _, ch := range slow {
		r.log.Warn("evicting slow channel", slog.Uint64("ticket_id", ticketID))
		r.evict(ticketID, ch, "slow consumer")
	}
	return delivered
}

// Len reports how many channels are subscribed to ticketID.
func (r *Registry) Len(ticketID uint64) int {
	r.mu.RLock()
	rm, ok := r.rooms[ticketID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Rooms reports how many tickets have at least one subscriber.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close stops accepting connections, drops every subscription and waits for
// the writer goroutines. Channels are left to their owners to close.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, rm := range r.rooms {
		rm.mu.Lock()
		for ch, m := range rm.members {
			delete(rm.members, ch)
			close(m.out)
		}
		rm.mu.Unlock()
		delete(r.rooms, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) writeLoop(ticketID uint64, m *member) {
	defer r.wg.Done()
	for msg := range m.out {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
		err := m.ch.Send(ctx, msg)
		cancel()
		if err != nil {
			r.log.Warn("send failed, evicting channel",
				slog.Uint64("ticket_id", ticketID), slog.Any("error", err))
			r.evict(ticketID, m.ch, "write failed")
			// drain what was queued before eviction closed out
			for range m.out {
			}
			return
		}
	}
}

func (r *Registry) evict(ticketID uint64, ch Channel, reason string) {
	if r.remove(ticketID, ch) {
		if err := ch.Close(reason); err != nil {
			r.log.Debug("close evicted channel", slog.Any("error", err))
		}
	}
}

// remove reports whether ch was present.
func (r *Registry) remove(ticketID uint64, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[ticketID]
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	m, ok := rm.members[ch]
	if !ok {
		return false
	}
	delete(rm.members, ch)
	close(m.out)
	if len(rm.members) == 0 {
		delete(r.rooms, ticketID)
	}
	return true
}
