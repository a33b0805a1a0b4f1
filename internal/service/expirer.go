package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/domain"
	"go.uber.org/zap"
)

const defaultExpirerInterval = 1 * time.Hour

// ExpirerService deletes assessments older than the retention period.
type ExpirerService struct {
	store         domain.AssessmentStore
	retentionDays int
	logger        *zap.Logger

	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewExpirerService(s domain.AssessmentStore, retentionDays int, logger *zap.Logger) *ExpirerService {
	return &ExpirerService{
		store:         s,
		retentionDays: retentionDays,
		logger:        logger,
		interval:      defaultExpirerInterval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

func (s *ExpirerService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the expirer on a periodic schedule in a background goroutine.
// A retention of zero days keeps history forever.
func (s *ExpirerService) Start() {
	if s.retentionDays <= 0 {
		s.logger.Info("history expirer disabled")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("history expirer started",
			zap.Duration("interval", s.interval),
			zap.Int("retention_days", s.retentionDays))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("history expirer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the expirer.
func (s *ExpirerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ExpirerService) run(ctx context.Context) int64 {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to delete expired assessments", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		assessmentsPruned.Add(float64(deleted))
		s.logger.Info("deleted assessments past retention",
			zap.Int("retention_days", s.retentionDays),
			zap.Int64("count", deleted))
	}
	return deleted
}
