package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AssessmentStore struct {
	db *pgxpool.Pool
}

func NewAssessmentStore(db *pgxpool.Pool) *AssessmentStore {
	return &AssessmentStore{db: db}
}

const assessmentColumns = `id, kind, probability, risk_level, recommendation, confidence, evidence,
	school_name, location, reporter_name, model_checksum, created_at`

func (s *AssessmentStore) Create(ctx context.Context, a *domain.Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO assessments (id, kind, probability, risk_level, recommendation, confidence, evidence,
		 school_name, location, reporter_name, model_checksum)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		a.ID, a.Kind, a.Probability, a.RiskLevel, a.Recommendation, a.Confidence, a.Evidence,
		a.SchoolName, a.Location, a.ReporterName, a.ModelChecksum,
	).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AssessmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assessment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns assessments newest first.
func (s *AssessmentStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Assessment, error) {
	var kind *string
	if opts.Kind != "" {
		k := string(opts.Kind)
		kind = &k
	}
	var since *time.Time
	if !opts.Since.IsZero() {
		since = &opts.Since
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+assessmentColumns+` FROM assessments
		 WHERE ($1::text IS NULL OR kind = $1)
		   AND ($2::timestamptz IS NULL OR created_at >= $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		kind, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *AssessmentStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM assessments`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *AssessmentStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM assessments WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *AssessmentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func scanAssessment(row pgx.Row) (*domain.Assessment, error) {
	a := &domain.Assessment{}
	err := row.Scan(&a.ID, &a.Kind, &a.Probability, &a.RiskLevel, &a.Recommendation, &a.Confidence,
		&a.Evidence, &a.SchoolName, &a.Location, &a.ReporterName, &a.ModelChecksum, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
