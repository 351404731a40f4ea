package wire

import "sync"

// Registry is the client side of wl_registry.
type Registry struct {
	conn *Conn
	id   uint32

	mu        sync.Mutex
	onGlobal  func(name uint32, iface string, version uint32)
	onRemove  func(name uint32)
	destroyed bool
}

func (r *Registry) ID() uint32 {
	return r.id
}

// SetListener installs the global and global_remove handlers, replacing
// any previous ones.
func (r *Registry) SetListener(onGlobal func(name uint32, iface string, version uint32), onRemove func(name uint32)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onGlobal = onGlobal
	r.onRemove = onRemove
}

// Destroy detaches the handlers and releases the proxy. wl_registry has no
// destructor request, so the id stays reserved for events still in flight.
func (r *Registry) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.onGlobal = nil
	r.onRemove = nil
	r.mu.Unlock()

	r.conn.forget(r.id)
}

func (*Registry) iface() string { return InterfaceRegistry }

func (r *Registry) dispatch(opcode uint16, d *Decoder) error {
	r.mu.Lock()
	onGlobal, onRemove := r.onGlobal, r.onRemove
	r.mu.Unlock()

	switch opcode {
	case EvRegistryGlobal:
		name := d.Uint()
		iface := d.String()
		version := d.Uint()
		if d.Err() == nil && onGlobal != nil {
			onGlobal(name, iface, version)
		}
	case EvRegistryGlobalRemove:
		name := d.Uint()
		if d.Err() == nil && onRemove != nil {
			onRemove(name)
		}
	}
	return nil
}
