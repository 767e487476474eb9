package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type busStore struct{ s *Store }

func (b busStore) Create(_ context.Context, bus *models.Bus) error {
	defer b.s.write()()
	for _, existing := range b.s.data.buses {
		if existing.BusNumber == bus.BusNumber {
			return repository.ErrDuplicate
		}
	}
	if bus.ID == "" {
		bus.ID = uuid.NewString()
	}
	if bus.CreatedAt.IsZero() {
		bus.CreatedAt = time.Now().UTC()
	}
	bus.UpdatedAt = bus.CreatedAt
	b.s.data.buses[bus.ID] = *bus
	return nil
}

func (b busStore) GetByID(_ context.Context, id string) (*models.Bus, error) {
	defer b.s.read()()
	bus, ok := b.s.data.buses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &bus, nil
}

func (b busStore) GetByNumber(_ context.Context, number string) (*models.Bus, error) {
	defer b.s.read()()
	for _, bus := range b.s.data.buses {
		if bus.BusNumber == number {
			found := bus
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (b busStore) List(_ context.Context) ([]models.Bus, error) {
	defer b.s.read()()
	buses := make([]models.Bus, 0, len(b.s.data.buses))
	for _, bus := range b.s.data.buses {
		buses = append(buses, bus)
	}
	models.SortBusesByNumber(buses)
	return buses, nil
}

func (b busStore) Count(_ context.Context) (int, error) {
	defer b.s.read()()
	return len(b.s.data.buses), nil
}

func (b busStore) Update(_ context.Context, bus *models.Bus) error {
	defer b.s.write()()
	current, ok := b.s.data.buses[bus.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range b.s.data.buses {
		if id != bus.ID && existing.BusNumber == bus.BusNumber {
			return repository.ErrDuplicate
		}
	}
	bus.CreatedAt = current.CreatedAt
	bus.UpdatedAt = time.Now().UTC()
	b.s.data.buses[bus.ID] = *bus
	return nil
}

// Delete removes the bus together with its incidents, documents, status rows
// and driver assignments.
func (b busStore) Delete(_ context.Context, id string) (bool, error) {
	defer b.s.write()()
	d := b.s.data
	if _, ok := d.buses[id]; !ok {
		return false, nil
	}
	delete(d.buses, id)

	d.incidentSeq = filterSeq(d.incidentSeq, func(key string) bool {
		if d.incidents[key].BusID == id {
			delete(d.incidents, key)
			return false
		}
		return true
	})
	d.documentSeq = filterSeq(d.documentSeq, func(key string) bool {
		if d.documents[key].BusID == id {
			delete(d.documents, key)
			return false
		}
		return true
	})
	for key := range d.statuses {
		if key.busID == id {
			delete(d.statuses, key)
		}
	}
	delete(d.assignments, id)
	return true, nil
}

func filterSeq(seq []string, keep func(string) bool) []string {
	out := seq[:0:0]
	for _, key := range seq {
		if keep(key) {
			out = append(out, key)
		}
	}
	return out
}
