package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type statusStore struct{ s *Store }

func keyFor(busID string, equipment models.EquipmentType, channel *models.CameraChannel) slotKey {
	k := slotKey{busID: busID, equipment: equipment}
	if channel != nil {
		k.channel = string(*channel)
	}
	return k
}

func (st statusStore) Find(_ context.Context, busID string, equipment models.EquipmentType, channel *models.CameraChannel) (*models.EquipmentStatus, error) {
	defer st.s.read()()
	status, ok := st.s.data.statuses[keyFor(busID, equipment, channel)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &status, nil
}

func (st statusStore) Upsert(_ context.Context, status *models.EquipmentStatus) error {
	defer st.s.write()()
	key := keyFor(status.BusID, status.EquipmentType, status.CameraChannel)
	if existing, ok := st.s.data.statuses[key]; ok {
		status.ID = existing.ID
		if status.LastIncidentID == nil {
			status.LastIncidentID = existing.LastIncidentID
		}
	}
	if status.ID == "" {
		status.ID = uuid.NewString()
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	st.s.data.statuses[key] = *status
	return nil
}

func (st statusStore) ListByEquipment(_ context.Context, equipment models.EquipmentType) ([]models.EquipmentStatus, error) {
	defer st.s.read()()
	out := make([]models.EquipmentStatus, 0)
	for key, status := range st.s.data.statuses {
		if key.equipment == equipment {
			out = append(out, status)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		ka := keyFor(out[a].BusID, out[a].EquipmentType, out[a].CameraChannel)
		kb := keyFor(out[b].BusID, out[b].EquipmentType, out[b].CameraChannel)
		if ka.busID != kb.busID {
			return ka.busID < kb.busID
		}
		return ka.channel < kb.channel
	})
	return out, nil
}
