// Package memory is a map-backed repository.Store used by tests and by
// single-node deployments that set STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sync"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type slotKey struct {
	busID     string
	equipment models.EquipmentType
	channel   string
}

type state struct {
	buses       map[string]models.Bus
	incidents   map[string]models.Incident
	incidentSeq []string
	statuses    map[slotKey]models.EquipmentStatus
	documents   map[string]models.BusDocument
	documentSeq []string
	drivers     map[string]models.Driver
	assignments map[string]map[string]models.BusDriver
	users       map[string]models.User
}

func newState() *state {
	return &state{
		buses:       make(map[string]models.Bus),
		incidents:   make(map[string]models.Incident),
		statuses:    make(map[slotKey]models.EquipmentStatus),
		documents:   make(map[string]models.BusDocument),
		drivers:     make(map[string]models.Driver),
		assignments: make(map[string]map[string]models.BusDriver),
		users:       make(map[string]models.User),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.buses {
		c.buses[k] = v
	}
	for k, v := range s.incidents {
		c.incidents[k] = v
	}
	c.incidentSeq = append([]string(nil), s.incidentSeq...)
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	c.documentSeq = append([]string(nil), s.documentSeq...)
	for k, v := range s.drivers {
		c.drivers[k] = v
	}
	for bus, m := range s.assignments {
		inner := make(map[string]models.BusDriver, len(m))
		for k, v := range m {
			inner[k] = v
		}
		c.assignments[bus] = inner
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Store implements repository.Store in process memory. Records are copied on
// the way in and out; pointer fields are replaced, never mutated in place.
type Store struct {
	mu   *sync.RWMutex
	data *state
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{mu: &sync.RWMutex{}, data: newState()}
}

func (s *Store) read() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Buses() repository.BusStore { return busStore{s} }

func (s *Store) Incidents() repository.IncidentStore { return incidentStore{s} }

func (s *Store) EquipmentStatuses() repository.EquipmentStatusStore { return statusStore{s} }

func (s *Store) Documents() repository.DocumentStore { return documentStore{s} }

func (s *Store) Drivers() repository.DriverStore { return driverStore{s} }

func (s *Store) Users() repository.UserStore { return userStore{s} }

// WithinTx runs fn against a private copy of the data and publishes it only
// when fn succeeds. Writers are serialised for the duration.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

var _ repository.Store = (*Store)(nil)
