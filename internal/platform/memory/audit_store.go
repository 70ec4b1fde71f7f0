package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/store"
)

// AuditStore appends audit records to a slice.
type AuditStore struct {
	mu      sync.Mutex
	records []domain.GenerationAudit
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

var _ store.AuditStore = (*AuditStore)(nil)

// Record implements store.AuditStore.
func (s *AuditStore) Record(ctx context.Context, audit *domain.GenerationAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, *audit)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *AuditStore) Records() []domain.GenerationAudit {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.GenerationAudit(nil), s.records...)
}
