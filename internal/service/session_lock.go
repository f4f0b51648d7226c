package service

import (
	"context"
	"sync"
)

type sessionLockEntry struct {
	ch   chan struct{}
	refs int
}

// sessionLocker serializa el procesamiento de turnos por sesion sin bloquear otras sesiones.
// La espera respeta la cancelacion del contexto.
type sessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLockEntry
}

func newSessionLocker() *sessionLocker {
	return &sessionLocker{locks: make(map[string]*sessionLockEntry)}
}

// Lock devuelve la funcion de liberacion; debe llamarse exactamente una vez.
func (l *sessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &sessionLockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			l.release(key, entry)
		}, nil
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}
}

func (l *sessionLocker) release(key string, entry *sessionLockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

type resetEntry struct {
	mu   sync.Mutex
	gen  uint64
	refs int
}

// resetGuard lleva una generacion por sesion que sube con cada reset.
// Una entrada vive mientras algun turno o reset la use.
type resetGuard struct {
	mu      sync.Mutex
	entries map[string]*resetEntry
}

func newResetGuard() *resetGuard {
	return &resetGuard{entries: make(map[string]*resetEntry)}
}

// resetTicket ata un turno a la generacion vigente cuando empezo.
type resetTicket struct {
	guard *resetGuard
	key   string
	entry *resetEntry
	mark  uint64
}

// Begin registra un turno; Done debe llamarse exactamente una vez.
func (g *resetGuard) Begin(key string) *resetTicket {
	entry := g.acquire(key)
	entry.mu.Lock()
	mark := entry.gen
	entry.mu.Unlock()
	return &resetTicket{guard: g, key: key, entry: entry, mark: mark}
}

// Bump invalida los turnos en vuelo. Cualquier Commit que ya paso su chequeo termino antes de que Bump vuelva.
func (g *resetGuard) Bump(key string) {
	entry := g.acquire(key)
	entry.mu.Lock()
	entry.gen++
	entry.mu.Unlock()
	g.release(key, entry)
}

func (g *resetGuard) acquire(key string) *resetEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key]
	if !ok {
		entry = &resetEntry{}
		g.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (g *resetGuard) release(key string, entry *resetEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(g.entries, key)
	}
}

func (g *resetGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Commit ejecuta write solo si la sesion no se reseteo desde Begin.
// El chequeo y la escritura son atomicos respecto de Bump.
func (t *resetTicket) Commit(write func() error) (bool, error) {
	t.entry.mu.Lock()
	defer t.entry.mu.Unlock()
	if t.entry.gen != t.mark {
		return false, nil
	}
	return true, write()
}

func (t *resetTicket) Done() {
	t.guard.release(t.key, t.entry)
}
