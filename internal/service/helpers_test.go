package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository/memory"
	"github.com/noah-isme/fleet-ops-api/pkg/lock"
)

type fixture struct {
	store     *memory.Store
	buses     *BusService
	incidents *IncidentService
	metrics   *MetricsService
	clock     *testClock
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := &testClock{t: time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)}
	metrics := NewMetricsService()

	buses := NewBusService(store, nil, nil)
	buses.now = clock.Now
	incidents := NewIncidentService(store, lock.NewLocalLocker(time.Second), metrics, nil, nil)
	incidents.now = clock.Now

	return &fixture{store: store, buses: buses, incidents: incidents, metrics: metrics, clock: clock}
}

func (f *fixture) bus(t *testing.T, number string) *models.Bus {
	t.Helper()
	bus, err := f.buses.Create(context.Background(), CreateBusRequest{BusNumber: number})
	require.NoError(t, err)
	return bus
}

func (f *fixture) channelStatus(t *testing.T, busID string, ch models.CameraChannel) *models.EquipmentStatus {
	t.Helper()
	row, err := f.store.EquipmentStatuses().Find(context.Background(), busID, models.EquipmentCamera, &ch)
	require.NoError(t, err)
	return row
}

func seedIncident(t *testing.T, store *memory.Store, inc models.Incident) models.Incident {
	t.Helper()
	if inc.Status == "" {
		inc.Status = models.IncidentStatusPending
	}
	if inc.EquipmentType == "" {
		inc.EquipmentType = models.EquipmentCamera
	}
	if inc.IncidentType == "" {
		inc.IncidentType = models.IncidentFaulty
	}
	require.NoError(t, store.Incidents().Create(context.Background(), &inc))
	return inc
}

func timePtr(t time.Time) *time.Time { return &t }
