package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

// programRef is a shared reference to the tea.Program.
// Because bubbletea copies the model on every Update, we need a pointer
// that survives copies so server goroutines can send messages.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

// SetProgram sets the tea.Program reference (thread-safe).
func (r *programRef) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Send sends a message to the bubbletea program (thread-safe).
func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// eventBridge forwards the events of every watched server to the program.
type eventBridge struct {
	ref *programRef

	mu      sync.Mutex
	watched map[*server.Server]func()
}

func newEventBridge(ref *programRef) *eventBridge {
	return &eventBridge{ref: ref, watched: make(map[*server.Server]func())}
}

// Watch subscribes to servers not seen before and drops the subscriptions
// of servers missing from the list.
func (b *eventBridge) Watch(servers []*server.Server) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keep := make(map[*server.Server]bool, len(servers))
	for _, srv := range servers {
		keep[srv] = true
		if _, ok := b.watched[srv]; ok {
			continue
		}
		b.watched[srv] = srv.Subscribe(func(ev server.Event) {
			b.ref.Send(ServerEventMsg{Event: ev})
		})
	}
	for srv, unsubscribe := range b.watched {
		if !keep[srv] {
			unsubscribe()
			delete(b.watched, srv)
		}
	}
}

// Len returns the number of watched servers.
func (b *eventBridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watched)
}

// Close drops every subscription.
func (b *eventBridge) Close() {
	b.Watch(nil)
}
