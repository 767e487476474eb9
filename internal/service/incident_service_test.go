package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	appErrors "github.com/noah-isme/fleet-ops-api/pkg/errors"
	"github.com/noah-isme/fleet-ops-api/pkg/lock"
)

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (lock.Release, error) {
	return nil, lock.ErrNotAcquired
}

func cameraRequest(busID string, it models.IncidentType, channels ...models.CameraChannel) CreateIncidentRequest {
	return CreateIncidentRequest{
		BusID:          busID,
		EquipmentType:  models.EquipmentCamera,
		IncidentType:   it,
		CameraChannels: channels,
		ReportedBy:     "taller",
	}
}

func TestIncidentCreateFansOutPerChannel(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	created, err := f.incidents.Create(context.Background(),
		cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront, models.ChannelAisle))
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, inc := range created {
		assert.Equal(t, models.IncidentStatusPending, inc.Status)
		assert.Equal(t, f.clock.Now(), inc.ReportedAt)
		require.NotNil(t, inc.CameraChannel)

		row := f.channelStatus(t, bus.ID, *inc.CameraChannel)
		assert.Equal(t, models.StatusFaulty, row.Status)
		require.NotNil(t, row.LastIncidentID)
		assert.Equal(t, inc.ID, *row.LastIncidentID)
	}
	assert.Equal(t, models.StatusOperational, f.channelStatus(t, bus.ID, models.ChannelDoor).Status)
	assert.Equal(t, models.StatusOperational, f.channelStatus(t, bus.ID, models.ChannelPassengers).Status)

	// resolve ch1 only
	var ch1 models.Incident
	for _, inc := range created {
		if *inc.CameraChannel == models.ChannelFront {
			ch1 = inc
		}
	}
	f.clock.Advance(time.Hour)
	resolved, err := f.incidents.UpdateStatus(context.Background(), ch1.ID,
		UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved, ResolutionNotes: strPtr(" replaced lens ")})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, f.clock.Now(), *resolved.ResolvedAt)
	assert.Equal(t, "replaced lens", *resolved.ResolutionNotes)

	front := f.channelStatus(t, bus.ID, models.ChannelFront)
	assert.Equal(t, models.StatusOperational, front.Status)
	require.NotNil(t, front.LastIncidentID)
	assert.Equal(t, ch1.ID, *front.LastIncidentID)
	assert.Equal(t, models.StatusFaulty, f.channelStatus(t, bus.ID, models.ChannelAisle).Status)

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 2, snap.IncidentsCreated)
	assert.EqualValues(t, 1, snap.IncidentsResolved)
}

func TestIncidentCreateDedupesChannels(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	created, err := f.incidents.Create(context.Background(),
		cameraRequest(bus.ID, models.IncidentLooseCable, models.ChannelAisle, models.ChannelFront, models.ChannelAisle))
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, models.ChannelAisle, *created[0].CameraChannel)
	assert.Equal(t, models.ChannelFront, *created[1].CameraChannel)
	assert.Equal(t, models.StatusMisaligned, f.channelStatus(t, bus.ID, models.ChannelAisle).Status)
}

func TestIncidentNonCameraHasNoProjection(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	created, err := f.incidents.Create(context.Background(), CreateIncidentRequest{
		BusID:          bus.ID,
		EquipmentType:  models.EquipmentGPS,
		IncidentType:   models.IncidentFaulty,
		CameraChannels: []models.CameraChannel{models.ChannelFront},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].CameraChannel)

	assert.Equal(t, models.StatusOperational, f.channelStatus(t, bus.ID, models.ChannelFront).Status)
	gps, err := f.store.EquipmentStatuses().ListByEquipment(context.Background(), models.EquipmentGPS)
	require.NoError(t, err)
	assert.Empty(t, gps)

	_, err = f.incidents.UpdateStatus(context.Background(), created[0].ID,
		UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOperational, f.channelStatus(t, bus.ID, models.ChannelFront).Status)
}

func TestIncidentCameraWithoutChannelsCreatesOneRow(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	created, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].CameraChannel)
	for _, ch := range models.CameraChannels {
		assert.Equal(t, models.StatusOperational, f.channelStatus(t, bus.ID, ch).Status)
	}
}

func TestIncidentMissingStatusRowIsTolerated(t *testing.T) {
	f := newFixture(t)
	bare := &models.Bus{BusNumber: "55"}
	require.NoError(t, f.store.Buses().Create(context.Background(), bare))

	created, err := f.incidents.Create(context.Background(), cameraRequest(bare.ID, models.IncidentFaulty, models.ChannelDoor))
	require.NoError(t, err)
	require.Len(t, created, 1)

	rows, err := f.store.EquipmentStatuses().ListByEquipment(context.Background(), models.EquipmentCamera)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIncidentResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	created, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.NoError(t, err)
	id := created[0].ID

	f.clock.Advance(time.Hour)
	first, err := f.incidents.UpdateStatus(context.Background(), id, UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved})
	require.NoError(t, err)
	firstResolvedAt := *first.ResolvedAt

	// a newer incident takes the channel over
	f.clock.Advance(time.Hour)
	newer, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentMisaligned, models.ChannelFront))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.incidents.UpdateStatus(context.Background(), id, UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved})
	require.NoError(t, err)
	assert.Equal(t, firstResolvedAt, *second.ResolvedAt)

	row := f.channelStatus(t, bus.ID, models.ChannelFront)
	assert.Equal(t, models.StatusMisaligned, row.Status)
	assert.Equal(t, newer[0].ID, *row.LastIncidentID)
	assert.EqualValues(t, 1, f.metrics.Snapshot().IncidentsResolved)
}

// The projection is last-write-wins: resolving one incident resets the channel
// even while another incident on the same channel is still open.
func TestIncidentResolveIgnoresOtherOpenIncidents(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	first, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFaulty, f.channelStatus(t, bus.ID, models.ChannelFront).Status)

	_, err = f.incidents.UpdateStatus(context.Background(), first[0].ID, UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved})
	require.NoError(t, err)

	row := f.channelStatus(t, bus.ID, models.ChannelFront)
	assert.Equal(t, models.StatusOperational, row.Status)
	require.NotNil(t, row.LastIncidentID)
	assert.Equal(t, second[0].ID, *row.LastIncidentID)

	open, err := f.incidents.Get(context.Background(), second[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusPending, open.Status)
}

func TestIncidentStatusTransitionsWithoutResolve(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	created, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.NoError(t, err)

	updated, err := f.incidents.UpdateStatus(context.Background(), created[0].ID,
		UpdateIncidentStatusRequest{Status: models.IncidentStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusInProgress, updated.Status)
	assert.Nil(t, updated.ResolvedAt)
	assert.Equal(t, models.StatusFaulty, f.channelStatus(t, bus.ID, models.ChannelFront).Status)

	_, err = f.incidents.UpdateStatus(context.Background(), created[0].ID,
		UpdateIncidentStatusRequest{Status: "closed"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.incidents.UpdateStatus(context.Background(), "missing",
		UpdateIncidentStatusRequest{Status: models.IncidentStatusResolved})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestIncidentCreateValidation(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")

	_, err := f.incidents.Create(context.Background(), CreateIncidentRequest{
		BusID: bus.ID, EquipmentType: "radio", IncidentType: models.IncidentFaulty,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, "ch9"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.incidents.Create(context.Background(), cameraRequest("missing", models.IncidentFaulty, models.ChannelFront))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	incidents, err := f.store.Incidents().List(context.Background(), models.IncidentFilter{})
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestIncidentCreateLockUnavailable(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	f.incidents.locker = busyLocker{}

	_, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLockUnavailable))
	assert.EqualValues(t, 1, f.metrics.Snapshot().LockContention)

	incidents, err := f.store.Incidents().List(context.Background(), models.IncidentFilter{})
	require.NoError(t, err)
	assert.Empty(t, incidents)

	// non-camera writes never take a lock
	_, err = f.incidents.Create(context.Background(), CreateIncidentRequest{
		BusID: bus.ID, EquipmentType: models.EquipmentDVR, IncidentType: models.IncidentFaulty,
	})
	require.NoError(t, err)
}

func TestIncidentConcurrentWritersKeepProjectionConsistent(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	f.incidents.now = time.Now

	types := []models.IncidentType{models.IncidentFaulty, models.IncidentMisaligned, models.IncidentLooseCable, models.IncidentReplacement}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(it models.IncidentType) {
			defer wg.Done()
			_, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, it, models.ChannelFront, models.ChannelDoor))
			assert.NoError(t, err)
		}(types[i%len(types)])
	}
	wg.Wait()

	for _, ch := range []models.CameraChannel{models.ChannelFront, models.ChannelDoor} {
		row := f.channelStatus(t, bus.ID, ch)
		require.NotNil(t, row.LastIncidentID)
		last, err := f.incidents.Get(context.Background(), *row.LastIncidentID)
		require.NoError(t, err)
		assert.Equal(t, ch, *last.CameraChannel)
		assert.Equal(t, models.StatusForIncidentType(last.IncidentType), row.Status)
	}

	incidents, err := f.incidents.List(context.Background(), ListIncidentsQuery{})
	require.NoError(t, err)
	assert.Len(t, incidents, 40)
}

func TestIncidentListFiltersAndLimits(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	other := f.bus(t, "102")
	base := f.clock.Now()

	for i := 0; i < 120; i++ {
		seedIncident(t, f.store, models.Incident{BusID: bus.ID, ReportedAt: base.Add(-time.Duration(i) * time.Minute)})
	}
	seedIncident(t, f.store, models.Incident{
		BusID: other.ID, EquipmentType: models.EquipmentGPS, Status: models.IncidentStatusResolved, ReportedAt: base.Add(time.Minute),
	})

	all, err := f.incidents.List(context.Background(), ListIncidentsQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 100)
	assert.Equal(t, other.ID, all[0].BusID)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].ReportedAt.After(all[i-1].ReportedAt))
	}

	capped, err := f.incidents.List(context.Background(), ListIncidentsQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, capped, 121)

	resolved, err := f.incidents.List(context.Background(), ListIncidentsQuery{Status: "resolved"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, other.ID, resolved[0].BusID)

	byBus, err := f.incidents.List(context.Background(), ListIncidentsQuery{BusID: bus.ID, EquipmentType: "camera", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, byBus, 5)

	_, err = f.incidents.List(context.Background(), ListIncidentsQuery{Status: "open"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestIncidentDelete(t *testing.T) {
	f := newFixture(t)
	bus := f.bus(t, "101")
	created, err := f.incidents.Create(context.Background(), cameraRequest(bus.ID, models.IncidentFaulty, models.ChannelFront))
	require.NoError(t, err)

	require.NoError(t, f.incidents.Delete(context.Background(), created[0].ID))
	assert.True(t, appErrors.Is(f.incidents.Delete(context.Background(), created[0].ID), appErrors.ErrNotFound))
	_, err = f.incidents.Get(context.Background(), created[0].ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	// history removal leaves the projection alone
	assert.Equal(t, models.StatusFaulty, f.channelStatus(t, bus.ID, models.ChannelFront).Status)
}

func TestUniqueChannels(t *testing.T) {
	got := uniqueChannels([]models.CameraChannel{models.ChannelAisle, models.ChannelAisle, models.ChannelFront, models.ChannelAisle})
	assert.Equal(t, []models.CameraChannel{models.ChannelAisle, models.ChannelFront}, got)
	assert.Empty(t, uniqueChannels(nil))
}
