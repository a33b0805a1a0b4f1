package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/Harshitk-cp/wellspring/internal/export"
	"github.com/Harshitk-cp/wellspring/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoObservations     = errors.New("at least one observation (rainfall, turbidity, surface_runoff, or latrine_distance) must be provided")
	ErrAssessmentNotFound = errors.New("assessment not found")
)

// Publisher receives every new assessment, e.g. to push it to live dashboards.
type Publisher interface {
	Publish(event string, payload any)
}

// AssessmentService turns field observations into persisted risk assessments.
type AssessmentService struct {
	inference *InferenceService
	store     domain.AssessmentStore
	publisher Publisher
	limit     int
	logger    *zap.Logger
}

func NewAssessmentService(inference *InferenceService, s domain.AssessmentStore, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{
		inference: inference,
		store:     s,
		limit:     domain.DefaultListLimit,
		logger:    logger,
	}
}

func (s *AssessmentService) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetHistoryLimit caps listings and exports.
func (s *AssessmentService) SetHistoryLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// AssessContamination estimates the probability that the borehole water is
// contaminated given the observations, then stores and publishes the result.
func (s *AssessmentService) AssessContamination(ctx context.Context, obs domain.Observation) (*domain.ContaminationResult, error) {
	evidence := obs.ContaminationEvidence()
	if len(evidence) == 0 {
		return nil, ErrNoObservations
	}

	d, err := s.inference.Posterior(ctx, domain.VarContamination, evidence)
	if err != nil {
		return nil, err
	}
	if d.Interest == bayes.NoInterest {
		return nil, fmt.Errorf("%w: %s", bayes.ErrNoInterestState, d.Variable)
	}

	p := d.Probabilities[d.Interest]
	risk := domain.CategorizeRisk(p)
	res := &domain.ContaminationResult{
		Assessment: domain.Assessment{
			Kind:           domain.AssessmentContamination,
			Probability:    p,
			RiskLevel:      risk,
			Recommendation: risk.Recommendation(),
			Confidence:     domain.ConfidenceFor(len(evidence)),
			Evidence:       evidence,
			SchoolName:     obs.SchoolName,
			Location:       obs.Location,
			ReporterName:   obs.ReporterName,
			ModelChecksum:  d.Checksum,
		},
		SafeProbability:          1 - p,
		ContaminationProbability: p,
	}
	if err := s.record(ctx, &res.Assessment, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AssessPump estimates the failure probability of a pump of the given age
// category.
func (s *AssessmentService) AssessPump(ctx context.Context, age int, obs domain.Observation) (*domain.PumpStatus, error) {
	evidence := map[string]int{domain.VarPumpAge: age}
	d, err := s.inference.Posterior(ctx, domain.VarPumpFailure, evidence)
	if err != nil {
		return nil, err
	}
	if d.Interest == bayes.NoInterest {
		return nil, fmt.Errorf("%w: %s", bayes.ErrNoInterestState, d.Variable)
	}

	failure := d.Probabilities[d.Interest]
	res := &domain.PumpStatus{
		Assessment: domain.Assessment{
			Kind:           domain.AssessmentPump,
			Probability:    failure,
			RiskLevel:      domain.PumpRiskLevel(failure),
			Recommendation: domain.PumpRecommendation(failure),
			Evidence:       evidence,
			SchoolName:     obs.SchoolName,
			Location:       obs.Location,
			ReporterName:   obs.ReporterName,
			ModelChecksum:  d.Checksum,
		},
		WorkingProbability: 1 - failure,
		FailureProbability: failure,
		MaintenanceNeeded:  failure > domain.MaintenanceThreshold,
		PumpAgeCategory:    domain.PumpAgeCategory(age),
	}
	if err := s.record(ctx, &res.Assessment, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AssessmentService) record(ctx context.Context, a *domain.Assessment, payload any) error {
	a.ID = uuid.New()
	if err := s.store.Create(ctx, a); err != nil {
		s.logger.Error("failed to store assessment", zap.String("kind", string(a.Kind)), zap.Error(err))
		return err
	}
	assessmentsTotal.WithLabelValues(string(a.Kind), string(a.RiskLevel)).Inc()
	s.logger.Info("assessment recorded",
		zap.String("id", a.ID.String()),
		zap.String("kind", string(a.Kind)),
		zap.Float64("probability", a.Probability),
		zap.String("risk_level", string(a.RiskLevel)),
		zap.String("school", a.SchoolName))

	if s.publisher != nil {
		s.publisher.Publish("assessment", payload)
	}
	return nil
}

func (s *AssessmentService) Get(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// History lists assessments newest first, capped at the history limit.
func (s *AssessmentService) History(ctx context.Context, opts domain.ListOpts) ([]domain.Assessment, error) {
	if opts.Limit <= 0 || opts.Limit > s.limit {
		opts.Limit = s.limit
	}
	items, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Assessment{}
	}
	return items, nil
}

func (s *AssessmentService) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("assessment history cleared", zap.Int64("count", n))
	return n, nil
}

// Export writes the history selected by opts to w.
func (s *AssessmentService) Export(ctx context.Context, opts domain.ListOpts, format export.Format, w io.Writer) error {
	items, err := s.History(ctx, opts)
	if err != nil {
		return err
	}
	return export.Write(w, format, export.AssessmentsTable(items))
}

func (s *AssessmentService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
