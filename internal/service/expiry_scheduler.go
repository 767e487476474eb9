package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/pkg/jobs"
)

const jobTypeDocumentExpiring = "document.expiring"

// Notifier delivers one expiry alert.
type Notifier interface {
	NotifyExpiring(ctx context.Context, doc models.ExpiringDocument) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyExpiring logs the alert.
func (n *LogNotifier) NotifyExpiring(_ context.Context, doc models.ExpiringDocument) error {
	fields := []zap.Field{
		zap.String("document_id", doc.DocumentID),
		zap.String("bus_number", doc.BusNumber),
		zap.String("doc_type", string(doc.DocType)),
		zap.Time("expires_at", doc.ExpiresAt),
		zap.Int("days_left", doc.DaysLeft),
	}
	if doc.DriverName != nil {
		fields = append(fields, zap.String("driver_name", *doc.DriverName))
	}
	if doc.DaysLeft <= 0 {
		n.logger.Warn("document expired", fields...)
		return nil
	}
	n.logger.Info("document expiring", fields...)
	return nil
}

type expiryScanner interface {
	Expiring(ctx context.Context) ([]models.ExpiringDocument, error)
}

// ExpirySchedulerConfig tunes the periodic scan.
type ExpirySchedulerConfig struct {
	Interval   time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// ExpiryScheduler runs the expiry scan on a ticker and fans alerts out to a
// job queue. Repeated scans re-send the same alerts.
type ExpiryScheduler struct {
	scanner  expiryScanner
	notifier Notifier
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpiryScheduler wires a scanner to a notifier through a job queue.
func NewExpiryScheduler(scanner expiryScanner, notifier Notifier, cfg ExpirySchedulerConfig, logger *zap.Logger) *ExpiryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	s := &ExpiryScheduler{scanner: scanner, notifier: notifier, interval: cfg.Interval, logger: logger}
	s.queue = jobs.NewQueue("expiry-notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start scans immediately, then on every tick until ctx ends or Stop is called.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.queue.Start(runCtx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(runCtx)
			}
		}
	}()
	s.logger.Info("expiry scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and the workers.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.queue.Stop()
}

// RunOnce performs one scan and enqueues an alert per result. It returns the
// number of alerts enqueued.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) int {
	docs, err := s.scanner.Expiring(ctx)
	if err != nil {
		s.logger.Error("expiry scan failed", zap.Error(err))
		return 0
	}
	enqueued := 0
	for _, doc := range docs {
		job := jobs.Job{
			ID:      fmt.Sprintf("%s:%d", doc.DocumentID, doc.DaysLeft),
			Type:    jobTypeDocumentExpiring,
			Payload: doc,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("expiry alert not enqueued", zap.String("document_id", doc.DocumentID), zap.Error(err))
			continue
		}
		enqueued++
	}
	s.logger.Info("expiry scan completed", zap.Int("documents", len(docs)), zap.Int("enqueued", enqueued))
	return enqueued
}

// Stats reports delivery outcomes.
func (s *ExpiryScheduler) Stats() jobs.Stats {
	return s.queue.Stats()
}

func (s *ExpiryScheduler) handle(ctx context.Context, job jobs.Job) error {
	doc, ok := job.Payload.(models.ExpiringDocument)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	return s.notifier.NotifyExpiring(ctx, doc)
}
