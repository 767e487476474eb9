package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type driverStore struct{ s *Store }

func (d driverStore) Create(_ context.Context, driver *models.Driver) error {
	defer d.s.write()()
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	if driver.CreatedAt.IsZero() {
		driver.CreatedAt = time.Now().UTC()
	}
	d.s.data.drivers[driver.ID] = *driver
	return nil
}

func (d driverStore) GetByID(_ context.Context, id string) (*models.Driver, error) {
	defer d.s.read()()
	driver, ok := d.s.data.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &driver, nil
}

func (d driverStore) List(_ context.Context) ([]models.Driver, error) {
	defer d.s.read()()
	out := make([]models.Driver, 0, len(d.s.data.drivers))
	for _, driver := range d.s.data.drivers {
		out = append(out, driver)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].FullName != out[b].FullName {
			return out[a].FullName < out[b].FullName
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Delete drops the driver's assignments and clears the driver link on documents.
func (d driverStore) Delete(_ context.Context, id string) (bool, error) {
	defer d.s.write()()
	data := d.s.data
	if _, ok := data.drivers[id]; !ok {
		return false, nil
	}
	delete(data.drivers, id)
	for _, m := range data.assignments {
		delete(m, id)
	}
	for key, doc := range data.documents {
		if doc.DriverID != nil && *doc.DriverID == id {
			doc.DriverID = nil
			data.documents[key] = doc
		}
	}
	return true, nil
}

func (d driverStore) Assign(_ context.Context, assignment *models.BusDriver) error {
	defer d.s.write()()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	m, ok := d.s.data.assignments[assignment.BusID]
	if !ok {
		m = make(map[string]models.BusDriver)
		d.s.data.assignments[assignment.BusID] = m
	}
	m[assignment.DriverID] = *assignment
	return nil
}

func (d driverStore) Unassign(_ context.Context, busID, driverID string) (bool, error) {
	defer d.s.write()()
	m, ok := d.s.data.assignments[busID]
	if !ok {
		return false, nil
	}
	if _, ok := m[driverID]; !ok {
		return false, nil
	}
	delete(m, driverID)
	return true, nil
}

func (d driverStore) ListByBus(_ context.Context, busID string) ([]models.BusDriverDetail, error) {
	defer d.s.read()()
	out := make([]models.BusDriverDetail, 0)
	for driverID, assignment := range d.s.data.assignments[busID] {
		out = append(out, models.BusDriverDetail{BusDriver: assignment, FullName: d.s.data.drivers[driverID].FullName})
	}
	sort.Slice(out, func(a, b int) bool {
		ra, rb := out[a].Role == models.DriverRoleTitular, out[b].Role == models.DriverRoleTitular
		if ra != rb {
			return ra
		}
		return out[a].FullName < out[b].FullName
	})
	return out, nil
}
