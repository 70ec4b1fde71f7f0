package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

const jobColumns = `id, job_type, status, owner_id, learner_id, params, result, error_message,
	progress_percent, progress_message, webhook_url, created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: new jobs must be pending", store.ErrInvalidEntity)
	}

	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to encode job params: %w", err)
	}

	query := `
		INSERT INTO jobs (id, job_type, status, owner_id, learner_id, params,
			progress_percent, progress_message, webhook_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		string(job.Type),
		string(job.Status),
		job.OwnerID,
		job.LearnerID,
		params,
		job.ProgressPercent,
		job.ProgressMessage,
		job.WebhookURL,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrJobExists, job.ID)
		}
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))
	return nil
}

// Get implements store.JobStore.Get
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	return job, nil
}

// Transition implements store.JobStore.Transition as a single conditional
// UPDATE. The WHERE clause carries the compare-and-set: the current status
// must be both expected by the caller and a legal source for the target,
// and progress may not move backwards while processing.
func (s *PostgresJobStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	expectedFrom []domain.JobStatus,
	update domain.JobUpdate,
) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := update.Validate(); err != nil {
		return nil, err
	}

	var sources []string
	for _, from := range domain.SourcesFor(update.To) {
		if store.StatusIn(from, expectedFrom) {
			sources = append(sources, string(from))
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no expected status can reach %s", domain.ErrInvalidTransition, update.To)
	}

	var result []byte
	if update.Result != nil {
		encoded, err := json.Marshal(update.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job result: %w", err)
		}
		result = encoded
	}

	var progress sql.NullInt64
	if update.ProgressPercent != nil {
		progress = sql.NullInt64{Int64: int64(*update.ProgressPercent), Valid: true}
	}
	var message sql.NullString
	if update.ProgressMessage != nil {
		message = sql.NullString{String: *update.ProgressMessage, Valid: true}
	}
	errorMessage := sql.NullString{String: update.ErrorMessage, Valid: update.ErrorMessage != ""}

	query := `
		UPDATE jobs SET
			status = $3,
			progress_percent = CASE
				WHEN $3 = 'completed' THEN 100
				ELSE COALESCE($4::integer, progress_percent)
			END,
			progress_message = COALESCE($5::text, progress_message),
			result = $6::jsonb,
			error_message = $7::text,
			updated_at = $8
		WHERE id = $1
			AND status = ANY($2::text[])
			AND ($4::integer IS NULL OR status <> 'processing' OR progress_percent <= $4::integer)
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		id,
		sources,
		string(update.To),
		progress,
		message,
		result,
		errorMessage,
		time.Now().UTC(),
	))
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to transition job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()),
			slog.String("to", string(update.To)))
		return nil, MapError(err)
	}

	// No row matched: either the job is unknown or the compare-and-set failed.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: job %s is %s (progress %d), cannot apply %s",
		domain.ErrInvalidTransition, id, current.Status, current.ProgressPercent, update.To)
}

// List implements store.JobStore.List
func (s *PostgresJobStore) List(ctx context.Context, filter store.JobFilter) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		conditions = []string{"owner_id = $1"}
		args       = []any{filter.OwnerID}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultJobListLimit
	}
	args = append(args, limit, max(filter.Offset, 0))

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		jobColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	jobs, err := s.queryJobs(ctx, query, args...)
	if err != nil {
		log.Error("failed to list jobs",
			slog.String("error", err.Error()),
			slog.String("owner_id", filter.OwnerID.String()))
		return nil, err
	}
	return jobs, nil
}

// ListByStatus implements store.JobStore.ListByStatus
func (s *PostgresJobStore) ListByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		query string
		args  []any
	)
	if olderThan > 0 {
		query = `SELECT ` + jobColumns + ` FROM jobs
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC`
		args = []any{string(status), time.Now().UTC().Add(-olderThan)}
	} else {
		query = `SELECT ` + jobColumns + ` FROM jobs
			WHERE status = $1
			ORDER BY created_at ASC`
		args = []any{string(status)}
	}

	jobs, err := s.queryJobs(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, err
	}
	return jobs, nil
}

func (s *PostgresJobStore) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job          domain.Job
		jobType      string
		status       string
		params       []byte
		result       []byte
		errorMessage sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&jobType,
		&status,
		&job.OwnerID,
		&job.LearnerID,
		&params,
		&result,
		&errorMessage,
		&job.ProgressPercent,
		&job.ProgressMessage,
		&job.WebhookURL,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.ErrorMessage = errorMessage.String

	if job.Params, err = domain.DecodeJobParams(job.Type, params); err != nil {
		return nil, err
	}
	if job.Result, err = domain.DecodeJobResult(job.Type, result); err != nil {
		return nil, err
	}

	return &job, nil
}
