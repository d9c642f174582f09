// Package memory implementa todos los puertos de persistencia en memoria, con transacciones
// por copia (snapshot al empezar, intercambio al confirmar). Sirve como driver "memory"
// para entornos locales y como doble de pruebas de la capa de aplicación.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
	"github.com/jhoicas/stock-consolidator/internal/domain/repository"
)

// FaultFunc permite inyectar fallos por operación y palet (op p. ej. "lines.create").
type FaultFunc func(op string, palletID int64) error

type state struct {
	nextID    int64
	deltas    map[int64]*entity.Delta
	lines     map[int64]*entity.StockLine
	pallets   map[int64]*entity.Pallet
	transfers map[int64]*entity.Transfer
	counts    map[int64]*entity.CycleCount
	logs      []*entity.LogEntry
}

func newState() *state {
	return &state{
		deltas:    make(map[int64]*entity.Delta),
		lines:     make(map[int64]*entity.StockLine),
		pallets:   make(map[int64]*entity.Pallet),
		transfers: make(map[int64]*entity.Transfer),
		counts:    make(map[int64]*entity.CycleCount),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// reserve asigna un ID nuevo o respeta el indicado sin que futuros IDs colisionen.
func (s *state) reserve(id int64) int64 {
	if id == 0 {
		return s.id()
	}
	if id > s.nextID {
		s.nextID = id
	}
	return id
}

func (s *state) clone() *state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.deltas {
		d := *v
		c.deltas[k] = &d
	}
	for k, v := range s.lines {
		l := *v
		c.lines[k] = &l
	}
	for k, v := range s.pallets {
		p := *v
		c.pallets[k] = &p
	}
	for k, v := range s.transfers {
		t := *v
		c.transfers[k] = &t
	}
	for k, v := range s.counts {
		cc := *v
		cc.Lines = append([]entity.CycleCountLine(nil), v.Lines...)
		c.counts[k] = &cc
	}
	c.logs = append(c.logs, s.logs...)
	return c
}

// accessor da acceso al estado: directo (dentro de tx) o con bloqueo (fuera de tx).
type accessor interface {
	with(fn func(s *state) error) error
	fault(op string, palletID int64) error
}

// Store almacén en memoria.
type Store struct {
	txMu sync.Mutex // serializa transacciones
	mu   sync.Mutex
	st   *state

	faultMu sync.Mutex
	fault   FaultFunc

	notifMu       sync.Mutex
	notifications []*entity.NotificationRecord
	notifyFault   func() error

	catalogMu sync.RWMutex
	catalog   map[string]string
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState(), catalog: make(map[string]string)}
}

// FailWhen instala un inyector de fallos para las operaciones de escritura.
func (s *Store) FailWhen(f FaultFunc) {
	s.faultMu.Lock()
	s.fault = f
	s.faultMu.Unlock()
}

// FailNotifications hace que Record devuelva el error indicado (nil lo desactiva).
func (s *Store) FailNotifications(f func() error) {
	s.notifMu.Lock()
	s.notifyFault = f
	s.notifMu.Unlock()
}

func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) faultFor(op string, palletID int64) error {
	s.faultMu.Lock()
	f := s.fault
	s.faultMu.Unlock()
	if f == nil {
		return nil
	}
	return f(op, palletID)
}

type direct struct{ s *Store }

func (d direct) with(fn func(st *state) error) error { return d.s.with(fn) }
func (d direct) fault(op string, palletID int64) error { return d.s.faultFor(op, palletID) }

type txAccess struct {
	st *state
	s  *Store
}

func (t txAccess) with(fn func(st *state) error) error { return fn(t.st) }
func (t txAccess) fault(op string, palletID int64) error { return t.s.faultFor(op, palletID) }

func reposFor(a accessor) repository.Repos {
	return repository.Repos{
		Deltas:    &DeltaRepo{a: a},
		Lines:     &StockLineRepo{a: a},
		Pallets:   &PalletRepo{a: a},
		Transfers: &TransferRepo{a: a},
		Logs:      &LogRepo{a: a},
		Counts:    &CycleCountRepo{a: a},
	}
}

// Repos repositorios sin transacción (cada operación es atómica por sí sola).
func (s *Store) Repos() repository.Repos {
	return reposFor(direct{s: s})
}

// Run ejecuta fn sobre una copia del estado y la publica solo si fn no falla.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx, reposFor(txAccess{st: snapshot, s: s})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
	return nil
}

// Record implementa repository.NotificationRepository.
func (s *Store) Record(_ context.Context, n *entity.NotificationRecord) error {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	if s.notifyFault != nil {
		if err := s.notifyFault(); err != nil {
			return err
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	c := *n
	s.notifications = append(s.notifications, &c)
	return nil
}

// Notifications copia de las notificaciones registradas.
func (s *Store) Notifications() []*entity.NotificationRecord {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	return append([]*entity.NotificationRecord(nil), s.notifications...)
}

// AddArticle registra una descripción en el maestro de artículos.
func (s *Store) AddArticle(companyCode, articleCode, description string) {
	s.catalogMu.Lock()
	s.catalog[companyCode+"|"+articleCode] = description
	s.catalogMu.Unlock()
}

// Upsert alta o actualización de un artículo (seed).
func (s *Store) Upsert(_ context.Context, companyCode, articleCode, description string) error {
	s.AddArticle(companyCode, articleCode, description)
	return nil
}

// LookupArticleDescription implementa repository.ArticleCatalog.
func (s *Store) LookupArticleDescription(_ context.Context, companyCode, articleCode string) (string, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return s.catalog[companyCode+"|"+articleCode], nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
