package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type documentStore struct{ s *Store }

func (d documentStore) Create(_ context.Context, doc *models.BusDocument) error {
	defer d.s.write()()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if _, exists := d.s.data.documents[doc.ID]; !exists {
		d.s.data.documentSeq = append(d.s.data.documentSeq, doc.ID)
	}
	d.s.data.documents[doc.ID] = *doc
	return nil
}

func (d documentStore) GetByID(_ context.Context, id string) (*models.BusDocument, error) {
	defer d.s.read()()
	doc, ok := d.s.data.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (d documentStore) ListByBus(_ context.Context, busID string) ([]models.BusDocument, error) {
	defer d.s.read()()
	out := make([]models.BusDocument, 0)
	for _, id := range d.s.data.documentSeq {
		if doc := d.s.data.documents[id]; doc.BusID == busID {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].UploadedAt.After(out[b].UploadedAt) })
	return out, nil
}

func (d documentStore) ListWithExpiry(_ context.Context) ([]models.BusDocument, error) {
	defer d.s.read()()
	out := make([]models.BusDocument, 0)
	for _, id := range d.s.data.documentSeq {
		if doc := d.s.data.documents[id]; doc.ExpiresAt != nil {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ExpiresAt.Before(*out[b].ExpiresAt) })
	return out, nil
}

func (d documentStore) Delete(_ context.Context, id string) (bool, error) {
	defer d.s.write()()
	if _, ok := d.s.data.documents[id]; !ok {
		return false, nil
	}
	delete(d.s.data.documents, id)
	d.s.data.documentSeq = filterSeq(d.s.data.documentSeq, func(key string) bool { return key != id })
	return true, nil
}
