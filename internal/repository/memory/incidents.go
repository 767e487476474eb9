package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type incidentStore struct{ s *Store }

func (i incidentStore) Create(_ context.Context, incident *models.Incident) error {
	defer i.s.write()()
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = time.Now().UTC()
	}
	if incident.UpdatedAt.IsZero() {
		incident.UpdatedAt = incident.ReportedAt
	}
	if _, exists := i.s.data.incidents[incident.ID]; !exists {
		i.s.data.incidentSeq = append(i.s.data.incidentSeq, incident.ID)
	}
	i.s.data.incidents[incident.ID] = *incident
	return nil
}

func (i incidentStore) GetByID(_ context.Context, id string) (*models.Incident, error) {
	defer i.s.read()()
	incident, ok := i.s.data.incidents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &incident, nil
}

func (i incidentStore) UpdateStatus(_ context.Context, incident *models.Incident) error {
	defer i.s.write()()
	current, ok := i.s.data.incidents[incident.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Status = incident.Status
	current.ResolutionNotes = incident.ResolutionNotes
	current.ResolvedAt = incident.ResolvedAt
	current.UpdatedAt = incident.UpdatedAt
	i.s.data.incidents[incident.ID] = current
	return nil
}

// List keeps insertion order among equal report times.
func (i incidentStore) List(_ context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	defer i.s.read()()
	matched := i.matching(filter)
	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].ReportedAt.After(matched[b].ReportedAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (i incidentStore) Count(_ context.Context, filter models.IncidentFilter) (int, error) {
	defer i.s.read()()
	return len(i.matching(filter)), nil
}

func (i incidentStore) Delete(_ context.Context, id string) (bool, error) {
	defer i.s.write()()
	if _, ok := i.s.data.incidents[id]; !ok {
		return false, nil
	}
	delete(i.s.data.incidents, id)
	i.s.data.incidentSeq = filterSeq(i.s.data.incidentSeq, func(key string) bool { return key != id })
	return true, nil
}

func (i incidentStore) matching(filter models.IncidentFilter) []models.Incident {
	out := make([]models.Incident, 0)
	for _, id := range i.s.data.incidentSeq {
		incident := i.s.data.incidents[id]
		if filter.Matches(incident) {
			out = append(out, incident)
		}
	}
	return out
}
