package models

import (
	"time"

	"github.com/google/uuid"
)

// InsuranceState is one submission attempt within a policy's life: a distinct
// (begin date, email, payment type) configuration with its own status,
// carrier correlation id and reward documents. States are append-only; a
// policy never removes one.
type InsuranceState struct {
	Reference          uuid.UUID
	BeginDate          time.Time
	Email              string
	PaymentType        PaymentType
	Status             Status
	RedirectURL        string
	InsuranceReference string
	GlobalID           string
	History            *StatusHistory
	Documents          *DocumentCollection
}

// NewInsuranceState creates a draft-status state for the given configuration.
func NewInsuranceState(beginDate time.Time, email string, paymentType PaymentType, now time.Time) *InsuranceState {
	return &InsuranceState{
		Reference:   uuid.New(),
		BeginDate:   Date(beginDate),
		Email:       email,
		PaymentType: paymentType,
		Status:      StatusDraft,
		History:     NewStatusHistory(StatusRecord{Status: StatusDraft, Timestamp: now}),
		Documents:   NewDocumentCollection(),
	}
}

// SetStatus moves the state to the given status and records it in the state's
// own history.
func (s *InsuranceState) SetStatus(status Status, timestamp time.Time) {
	s.Status = status
	s.History.Add(status, timestamp)
}

// CreateAccrueReward adds an accrue reward document unless a live one exists.
func (s *InsuranceState) CreateAccrueReward(documentReference uuid.UUID) {
	s.createReward(DocumentAccrue, documentReference)
}

// CreateRetentionReward adds a retention reward document unless a live one
// exists.
func (s *InsuranceState) CreateRetentionReward(documentReference uuid.UUID) {
	s.createReward(DocumentRetention, documentReference)
}

func (s *InsuranceState) createReward(documentType DocumentType, documentReference uuid.UUID) {
	if s.Documents.ByType(documentType) != nil {
		return
	}
	s.Documents.Add(&Document{Reference: documentReference, Type: documentType, Status: DocumentCreated})
}

// AccrueRewardDocument returns the live accrue document, or nil.
func (s *InsuranceState) AccrueRewardDocument() *Document {
	return s.Documents.ByType(DocumentAccrue)
}

// RetentionRewardDocument returns the live retention document, or nil.
func (s *InsuranceState) RetentionRewardDocument() *Document {
	return s.Documents.ByType(DocumentRetention)
}

func (s *InsuranceState) clone() *InsuranceState {
	cp := *s
	cp.History = s.History.clone()
	cp.Documents = s.Documents.clone()
	return &cp
}

// InsuranceStateCollection is the unordered, append-only set of a policy's
// insurance states. All lookups are first-match and return nil when absent.
type InsuranceStateCollection struct {
	states []*InsuranceState
}

// NewInsuranceStateCollection wraps persisted states.
func NewInsuranceStateCollection(states ...*InsuranceState) *InsuranceStateCollection {
	return &InsuranceStateCollection{states: states}
}

// States exposes the underlying states.
func (c *InsuranceStateCollection) States() []*InsuranceState {
	return c.states
}

// Add appends a state. There is no removal.
func (c *InsuranceStateCollection) Add(state *InsuranceState) {
	c.states = append(c.states, state)
}

// Search finds the state matching all three identity fields exactly.
func (c *InsuranceStateCollection) Search(beginDate time.Time, email string, paymentType PaymentType) *InsuranceState {
	want := Date(beginDate)
	for _, s := range c.states {
		if s.BeginDate.Equal(want) && s.Email == email && s.PaymentType == paymentType {
			return s
		}
	}
	return nil
}

// ByInsuranceReference finds the state with the given carrier correlation id.
func (c *InsuranceStateCollection) ByInsuranceReference(insuranceReference string) *InsuranceState {
	for _, s := range c.states {
		if s.InsuranceReference == insuranceReference {
			return s
		}
	}
	return nil
}

// ByStatus finds the first state in the given status.
func (c *InsuranceStateCollection) ByStatus(status Status) *InsuranceState {
	for _, s := range c.states {
		if s.Status == status {
			return s
		}
	}
	return nil
}

// ByGlobalID finds the state holding the given carrier policy id.
func (c *InsuranceStateCollection) ByGlobalID(globalID string) *InsuranceState {
	for _, s := range c.states {
		if s.GlobalID == globalID {
			return s
		}
	}
	return nil
}

// ByReference finds the state with the given internal reference.
func (c *InsuranceStateCollection) ByReference(reference uuid.UUID) *InsuranceState {
	for _, s := range c.states {
		if s.Reference == reference {
			return s
		}
	}
	return nil
}

func (c *InsuranceStateCollection) clone() *InsuranceStateCollection {
	cp := &InsuranceStateCollection{states: make([]*InsuranceState, 0, len(c.states))}
	for _, s := range c.states {
		cp.states = append(cp.states, s.clone())
	}
	return cp
}
