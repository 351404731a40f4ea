package gwl

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/gwayland/internal/logger"
	"github.com/bnema/gwayland/internal/wire"
	"github.com/charmbracelet/log"
)

// Global is one capability announced by the server.
type Global struct {
	Name      uint32 // stable for the lifetime of the connection
	Interface string
	Version   uint32
}

func (g Global) String() string {
	return fmt.Sprintf("%s v%d (name %d)", g.Interface, g.Version, g.Name)
}

// Listener observes global announcements.
type Listener interface {
	GlobalAdded(g Global)
	GlobalRemoved(name uint32)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Added   func(g Global)
	Removed func(name uint32)
}

func (f ListenerFuncs) GlobalAdded(g Global) {
	if f.Added != nil {
		f.Added(g)
	}
}

func (f ListenerFuncs) GlobalRemoved(name uint32) {
	if f.Removed != nil {
		f.Removed(name)
	}
}

// ListenerID identifies a registered listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	l  Listener
}

// GlobalRegistry republishes the server's global and global_remove events
// and keeps a catalog of the globals currently available.
//
// Listeners run synchronously on the goroutine that dispatches the
// connection, in registration order, exactly once per announcement.
type GlobalRegistry struct {
	handle *wire.Registry
	log    *log.Logger

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    ListenerID
	globals   map[uint32]Global
	destroyed bool
}

func newGlobalRegistry(conn *wire.Conn) (*GlobalRegistry, error) {
	handle, err := conn.GetRegistry()
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}

	r := &GlobalRegistry{
		globals: make(map[uint32]Global),
		log:     logger.With("component", "registry"),
	}
	r.bind(handle)
	return r, nil
}

// bind attaches to the transport registry. It runs once, before the
// connection is dispatched, so no announcement can be missed.
func (r *GlobalRegistry) bind(handle *wire.Registry) {
	r.handle = handle
	handle.SetListener(r.handleGlobal, r.handleGlobalRemove)
}

// AddListener registers l for future announcements. Announcements that
// were already delivered are not replayed; use Globals for those.
func (r *GlobalRegistry) AddListener(l Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.listeners = append(r.listeners, listenerEntry{id: r.nextID, l: l})
	return r.nextID
}

// OnGlobalAdded registers f for global-added events.
func (r *GlobalRegistry) OnGlobalAdded(f func(g Global)) ListenerID {
	return r.AddListener(ListenerFuncs{Added: f})
}

// OnGlobalRemoved registers f for global-removed events.
func (r *GlobalRegistry) OnGlobalRemoved(f func(name uint32)) ListenerID {
	return r.AddListener(ListenerFuncs{Removed: f})
}

// RemoveListener unregisters a listener and reports whether it existed.
func (r *GlobalRegistry) RemoveListener(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.listeners {
		if e.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup returns the global registered under name.
func (r *GlobalRegistry) Lookup(name uint32) (Global, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.globals[name]
	return g, ok
}

// Find returns the globals implementing iface, ordered by name.
func (r *GlobalRegistry) Find(iface string) []Global {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found []Global
	for _, g := range r.globals {
		if g.Interface == iface {
			found = append(found, g)
		}
	}
	sortByName(found)
	return found
}

// Globals returns every available global ordered by name.
func (r *GlobalRegistry) Globals() []Global {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Global, 0, len(r.globals))
	for _, g := range r.globals {
		all = append(all, g)
	}
	sortByName(all)
	return all
}

// Len returns the number of available globals.
func (r *GlobalRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.globals)
}

func (r *GlobalRegistry) handleGlobal(name uint32, iface string, version uint32) {
	g := Global{Name: name, Interface: iface, Version: version}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.globals[name] = g
	listeners := r.snapshot()
	r.mu.Unlock()

	r.log.Debug("global added", "name", name, "interface", iface, "version", version)
	for _, e := range listeners {
		e.l.GlobalAdded(g)
	}
}

func (r *GlobalRegistry) handleGlobalRemove(name uint32) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	g, ok := r.globals[name]
	if !ok {
		r.mu.Unlock()
		r.log.Warn("ignoring removal of unknown global", "name", name)
		return
	}
	delete(r.globals, name)
	listeners := r.snapshot()
	r.mu.Unlock()

	r.log.Debug("global removed", "name", name, "interface", g.Interface)
	for _, e := range listeners {
		e.l.GlobalRemoved(name)
	}
}

// snapshot copies the listener list so listeners may (un)register while
// an event is being delivered. Callers hold r.mu.
func (r *GlobalRegistry) snapshot() []listenerEntry {
	return append([]listenerEntry(nil), r.listeners...)
}

// destroy detaches from the transport and drops listeners and catalog.
func (r *GlobalRegistry) destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.listeners = nil
	r.globals = make(map[uint32]Global)
	r.mu.Unlock()

	if r.handle != nil {
		r.handle.Destroy()
	}
}

func sortByName(gs []Global) {
	sort.Slice(gs, func(i, j int) bool { return gs[i].Name < gs[j].Name })
}
