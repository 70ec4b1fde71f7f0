package postgres

import (
	"context"
	"log/slog"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// PostgresAuditStore implements store.AuditStore.
type PostgresAuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditStore creates a new PostgreSQL audit store.
func NewPostgresAuditStore(db store.DBTX, logger *slog.Logger) *PostgresAuditStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_store")),
	}
}

// Ensure PostgresAuditStore implements store.AuditStore interface
var _ store.AuditStore = (*PostgresAuditStore)(nil)

// Record implements store.AuditStore.Record
func (s *PostgresAuditStore) Record(ctx context.Context, audit *domain.GenerationAudit) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO generation_audits (id, job_id, learner_id, subject, bank_count,
			generated_count, composition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		audit.ID,
		audit.JobID,
		audit.LearnerID,
		audit.Subject,
		audit.BankCount,
		audit.GeneratedCount,
		string(audit.Composition),
		audit.CreatedAt,
	)
	if err != nil {
		log.Error("failed to record generation audit",
			slog.String("error", err.Error()),
			slog.String("learner_id", audit.LearnerID.String()))
		return MapError(err)
	}

	return nil
}
