package flow

import (
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var ErrSessionNotFound = errors.New("session_not_found")

// Store guarda las sesiones vivas en memoria con TTL. El estado de flujo es
// efímero por contrato: no hay persistencia, una caída pierde los flujos en
// vuelo y el pagador simplemente reinicia.
type Store struct {
	c *gocache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore crea el store. ttl acota la vida total de una sesión además del
// vencimiento por estado de la máquina.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	st := &Store{
		c:     gocache.New(ttl, 2*ttl),
		locks: make(map[string]*sync.Mutex),
	}
	st.c.OnEvicted(func(id string, _ any) {
		st.mu.Lock()
		delete(st.locks, id)
		st.mu.Unlock()
	})
	return st
}

// Put registra una sesión nueva.
func (st *Store) Put(s Session) {
	st.c.SetDefault(s.ID, s)
}

// Get devuelve una copia; mutar lo devuelto no toca el store.
func (st *Store) Get(id string) (Session, bool) {
	v, ok := st.c.Get(id)
	if !ok {
		return Session{}, false
	}
	return v.(Session), true
}

// Mutate ejecuta fn bajo el candado de la sesión y persiste el resultado.
// Serializa los turnos de mensajes de un mismo flujo sin frenar a los demás.
func (st *Store) Mutate(id string, fn func(*Session) error) (Session, error) {
	lock := st.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s, ok := st.Get(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := fn(&s); err != nil {
		return Session{}, err
	}
	st.c.SetDefault(id, s)
	return s, nil
}

func (st *Store) lockFor(id string) *sync.Mutex {
	st.mu.Lock()
	defer st.mu.Unlock()
	l, ok := st.locks[id]
	if !ok {
		l = &sync.Mutex{}
		st.locks[id] = l
	}
	return l
}
