package models

import "github.com/google/uuid"

// Event is a domain event raised by the policy aggregate. All events are
// comparable value structs; the outbox deduplicates on exact value while
// preserving emission order.
type Event interface {
	EventName() string
	PolicyReference() uuid.UUID
}

// StatusUpdatedEvent fires on every policy-level status change and on the PDF
// download flag flip; it drives CRM/channel notifications.
type StatusUpdatedEvent struct {
	Reference uuid.UUID
	ChannelID string
}

func (e StatusUpdatedEvent) EventName() string          { return "policy.status_updated" }
func (e StatusUpdatedEvent) PolicyReference() uuid.UUID { return e.Reference }

// CompletedInInsuranceEvent fires the first time a policy reaches
// COMPLETED_IN_INSURANCE; it triggers the offer refresh.
type CompletedInInsuranceEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e CompletedInInsuranceEvent) EventName() string          { return "policy.completed_in_insurance" }
func (e CompletedInInsuranceEvent) PolicyReference() uuid.UUID { return e.Reference }

// CompletedEvent fires when the policy reaches COMPLETED; it triggers accrue
// reward creation and the PDF download.
type CompletedEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e CompletedEvent) EventName() string          { return "policy.completed" }
func (e CompletedEvent) PolicyReference() uuid.UUID { return e.Reference }

// OperatorErrorEvent fires when an operator error leaves the policy without a
// completed sibling state to fall back to; it triggers accrue reward
// cancellation.
type OperatorErrorEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e OperatorErrorEvent) EventName() string          { return "policy.operator_error" }
func (e OperatorErrorEvent) PolicyReference() uuid.UUID { return e.Reference }

// RescindedEvent fires when the policy resolves to RESCINDED; it triggers
// retention reward creation.
type RescindedEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e RescindedEvent) EventName() string          { return "policy.rescinded" }
func (e RescindedEvent) PolicyReference() uuid.UUID { return e.Reference }

// ReissuedEvent fires when the policy resolves to REISSUED; it triggers
// retention reward creation.
type ReissuedEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e ReissuedEvent) EventName() string          { return "policy.reissued" }
func (e ReissuedEvent) PolicyReference() uuid.UUID { return e.Reference }

// RestoredEvent fires when a reissued policy is restored; it triggers
// retention reward cancellation.
type RestoredEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e RestoredEvent) EventName() string          { return "policy.restored" }
func (e RestoredEvent) PolicyReference() uuid.UUID { return e.Reference }

// AccrueRewardCreatedEvent fires when an accrue reward document is created;
// it triggers confirmation.
type AccrueRewardCreatedEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e AccrueRewardCreatedEvent) EventName() string          { return "policy.accrue_reward_created" }
func (e AccrueRewardCreatedEvent) PolicyReference() uuid.UUID { return e.Reference }

// RetentionRewardCreatedEvent fires when a retention reward document is
// created; it triggers confirmation.
type RetentionRewardCreatedEvent struct {
	Reference          uuid.UUID
	InsuranceReference string
}

func (e RetentionRewardCreatedEvent) EventName() string          { return "policy.retention_reward_created" }
func (e RetentionRewardCreatedEvent) PolicyReference() uuid.UUID { return e.Reference }
