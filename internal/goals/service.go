package goals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// ErrInvalidTarget rejects non-positive goal targets.
var ErrInvalidTarget = errors.New("goal target must be positive")

// Service manages per-agent savings goals stored under the goals key.
type Service struct {
	store  *ledger.Store
	syncer *ledger.Syncer
}

// NewService builds a goal service.
func NewService(store *ledger.Store, syncer *ledger.Syncer) *Service {
	return &Service{store: store, syncer: syncer}
}

// AddInput captures data required to create a goal.
type AddInput struct {
	AccountID string
	Name      string
	Target    int64
}

// Add creates a savings goal for an agent.
func (s *Service) Add(ctx context.Context, input AddInput) (ledger.Goal, error) {
	if input.Target <= 0 {
		return ledger.Goal{}, ErrInvalidTarget
	}
	account, err := s.store.Account(input.AccountID)
	if err != nil {
		return ledger.Goal{}, err
	}

	goal := ledger.Goal{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Name:      input.Name,
		Target:    input.Target,
		CreatedAt: time.Now().UTC(),
	}
	s.store.AddGoal(goal)
	s.syncer.Flush(ctx)
	return goal, nil
}

// List returns the goals for one account.
func (s *Service) List(accountID string) []ledger.Goal {
	var out []ledger.Goal
	for _, goal := range s.store.Goals() {
		if goal.AccountID == accountID {
			out = append(out, goal)
		}
	}
	return out
}

// Remove deletes a goal by id.
func (s *Service) Remove(ctx context.Context, id string) {
	s.store.RemoveGoal(id)
	s.syncer.Flush(ctx)
}
