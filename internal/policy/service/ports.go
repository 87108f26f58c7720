package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
)

// Consumer-side ports. Stores return plain sentinels
// (pkg/platform/sentinel); the service translates them into coded domain
// errors at the boundary.

// Repository persists policy aggregates with optimistic concurrency. Get
// returns the aggregate together with the version it was read at; Save must
// fail with sentinel.ErrVersionConflict when that version is stale.
type Repository interface {
	Get(ctx context.Context, reference uuid.UUID) (*models.Policy, int64, error)
	GetReferenceByInsuranceReference(ctx context.Context, insuranceReference string) (uuid.UUID, error)
	Create(ctx context.Context, policy *models.Policy) error
	Save(ctx context.Context, policy *models.Policy, version int64) error
}

// LeadProvider exposes the lead domain: the lead itself and the carrier offer
// quoted for it.
type LeadProvider interface {
	GetLead(ctx context.Context, leadReference uuid.UUID) (models.Lead, error)
	GetOffer(ctx context.Context, carrier models.Carrier, leadReference uuid.UUID) (models.Offer, error)
}

// OfferProvider refreshes the offer for an already materialized policy, used
// on completion when the carrier may have recalculated terms.
type OfferProvider interface {
	GetOffer(ctx context.Context, state *models.PolicyState) (models.Offer, error)
}

// CarrierAdapter submits policies to the carrier and fetches issued
// documents.
type CarrierAdapter interface {
	SavePolicy(ctx context.Context, state *models.PolicyState) (models.InsuranceInfo, error)
	GetPolicyPDF(ctx context.Context, carrier models.Carrier, insuranceReference string) ([]byte, error)
}

// RewardLedger mirrors reward documents into the external accounting system.
// Create calls return the accounting document reference; Cancel is shared
// between both document kinds on the accounting side.
type RewardLedger interface {
	CreateAccrueReward(ctx context.Context, state *models.PolicyState) (uuid.UUID, error)
	ConfirmAccrueReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error
	CreateRetentionReward(ctx context.Context, state *models.PolicyState) (uuid.UUID, error)
	ConfirmRetentionReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error
	CancelReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error
}

// ObjectStore keeps issued policy documents.
type ObjectStore interface {
	Upload(ctx context.Context, policyReference uuid.UUID, data []byte) error
	URL(ctx context.Context, policyReference uuid.UUID) (string, error)
}

// Locker serializes multi-step operations across instances. Acquire blocks
// until the key is held or ctx is done; the returned release must always be
// called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(ctx context.Context) error, err error)
}

// EventPublisher delivers drained domain events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// RequiredDataChecker answers what a policy still needs before submission.
type RequiredDataChecker interface {
	Check(ctx context.Context, state *models.PolicyState) (requireddata.Report, error)
	EnsureVerified(ctx context.Context, state *models.PolicyState) error
}

// CallbackMapper translates a raw carrier callback into domain terms. Each
// carrier integration registers its own mapping.
type CallbackMapper interface {
	StatusInfo(in CallbackInput) (models.StatusInfo, error)
}

// CallbackInput is a carrier status callback as the transport layer received
// it.
type CallbackInput struct {
	InsuranceReference string
	GlobalID           string
	EventType          string
	EventTime          time.Time
	Attributes         map[string]any
}
