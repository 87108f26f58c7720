package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/pkg/platform/sentinel"
)

// InMemory is a process-local repository with the same optimistic concurrency
// contract as the postgres one. Used in unit tests and local wiring.
type InMemory struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*memoryRecord
}

type memoryRecord struct {
	state   *models.PolicyState
	version int64
}

// NewInMemory constructs an empty in-memory policy repository.
func NewInMemory() *InMemory {
	return &InMemory{policies: make(map[uuid.UUID]*memoryRecord)}
}

// Create stores a fresh aggregate at version 1.
func (s *InMemory) Create(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[policy.Reference()]; ok {
		return sentinel.ErrConflict
	}
	s.policies[policy.Reference()] = &memoryRecord{state: policy.State(), version: 1}
	return nil
}

// Get returns the aggregate and the version it was read at.
func (s *InMemory) Get(_ context.Context, reference uuid.UUID) (*models.Policy, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.policies[reference]
	if !ok {
		return nil, 0, sentinel.ErrNotFound
	}
	return models.RestorePolicy(rec.state.Clone()), rec.version, nil
}

// GetReferenceByInsuranceReference resolves a policy by the carrier
// correlation id of any of its insurance states.
func (s *InMemory) GetReferenceByInsuranceReference(_ context.Context, insuranceReference string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for reference, rec := range s.policies {
		if rec.state.InsuranceStates.ByInsuranceReference(insuranceReference) != nil {
			return reference, nil
		}
	}
	return uuid.Nil, sentinel.ErrNotFound
}

// Save writes the aggregate back, failing with ErrVersionConflict when the
// stored version moved past the one the caller read.
func (s *InMemory) Save(_ context.Context, policy *models.Policy, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.policies[policy.Reference()]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.version != version {
		return sentinel.ErrVersionConflict
	}
	rec.state = policy.State()
	rec.version++
	return nil
}
