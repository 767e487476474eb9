package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

// ExpiryService lists documents inside their alert window. It keeps no state
// between calls.
type ExpiryService struct {
	store   repository.Store
	metrics expiryMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewExpiryService constructs the expiry scanner.
func NewExpiryService(store repository.Store, metrics expiryMetrics, logger *zap.Logger) *ExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryService{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// DaysLeft rounds the time until expiresAt up to whole days. Expired
// documents yield zero or a negative value.
func DaysLeft(expiresAt, now time.Time) int {
	return int(math.Ceil(float64(expiresAt.Sub(now)) / float64(24*time.Hour)))
}

// Expiring returns alerting documents, most urgent first.
func (s *ExpiryService) Expiring(ctx context.Context) ([]models.ExpiringDocument, error) {
	docs, err := s.store.Documents().ListWithExpiry(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list documents")
	}
	now := s.now()

	candidates := make([]models.ExpiringDocument, 0)
	driverIDs := make(map[int]string)
	for _, doc := range docs {
		threshold, alerts := doc.DocType.AlertThreshold()
		if !alerts || doc.ExpiresAt == nil {
			continue
		}
		days := DaysLeft(*doc.ExpiresAt, now)
		if days > threshold {
			continue
		}
		if doc.DriverID != nil {
			driverIDs[len(candidates)] = *doc.DriverID
		}
		candidates = append(candidates, models.ExpiringDocument{
			DocumentID: doc.ID,
			BusID:      doc.BusID,
			DocType:    doc.DocType,
			FileName:   doc.FileName,
			ExpiresAt:  *doc.ExpiresAt,
			DaysLeft:   days,
		})
	}

	if len(candidates) > 0 {
		if err := s.enrich(ctx, candidates, driverIDs); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].DaysLeft < candidates[j].DaysLeft })

	if s.metrics != nil {
		s.metrics.ExpiringDocuments(len(candidates))
	}
	return candidates, nil
}

func (s *ExpiryService) enrich(ctx context.Context, docs []models.ExpiringDocument, driverIDs map[int]string) error {
	buses, err := s.store.Buses().List(ctx)
	if err != nil {
		return internalError(err, "failed to load buses")
	}
	numbers := make(map[string]string, len(buses))
	for _, b := range buses {
		numbers[b.ID] = b.BusNumber
	}

	names := make(map[string]string)
	if len(driverIDs) > 0 {
		drivers, err := s.store.Drivers().List(ctx)
		if err != nil {
			return internalError(err, "failed to load drivers")
		}
		for _, d := range drivers {
			names[d.ID] = d.FullName
		}
	}

	for i := range docs {
		docs[i].BusNumber = numbers[docs[i].BusID]
		if id, ok := driverIDs[i]; ok {
			if name, found := names[id]; found {
				docs[i].DriverName = strPtr(name)
			}
		}
	}
	return nil
}
