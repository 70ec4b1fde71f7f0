package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/store"
)

type ratingKey struct {
	learnerID uuid.UUID
	subject   string
}

// SkillRatingStore keeps ratings in a map and serializes updates per key.
type SkillRatingStore struct {
	mu      sync.Mutex
	ratings map[ratingKey]domain.SkillRating
	locks   map[ratingKey]*sync.Mutex
}

// NewSkillRatingStore creates an empty SkillRatingStore.
func NewSkillRatingStore() *SkillRatingStore {
	return &SkillRatingStore{
		ratings: make(map[ratingKey]domain.SkillRating),
		locks:   make(map[ratingKey]*sync.Mutex),
	}
}

var _ store.SkillRatingStore = (*SkillRatingStore)(nil)

// Get implements store.SkillRatingStore.
func (s *SkillRatingStore) Get(ctx context.Context, learnerID uuid.UUID, subject string) (*domain.SkillRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rating, ok := s.ratings[ratingKey{learnerID, subject}]; ok {
		return &rating, nil
	}
	return domain.NewSkillRating(learnerID, subject), nil
}

// Update implements store.SkillRatingStore.
func (s *SkillRatingStore) Update(
	ctx context.Context,
	learnerID uuid.UUID,
	subject string,
	fn store.RatingUpdateFn,
) (*domain.SkillRating, error) {
	key := ratingKey{learnerID, subject}

	keyLock := s.lockFor(key)
	keyLock.Lock()
	defer keyLock.Unlock()

	current, err := s.Get(ctx, learnerID, subject)
	if err != nil {
		return nil, err
	}

	next, err := fn(current.Rating)
	if err != nil {
		return nil, err
	}

	updated := domain.SkillRating{
		LearnerID: learnerID,
		Subject:   subject,
		Rating:    next,
		UpdatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.ratings[key] = updated
	s.mu.Unlock()

	return &updated, nil
}

func (s *SkillRatingStore) lockFor(key ratingKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
