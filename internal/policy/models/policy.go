package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "polis/pkg/domain-errors"
)

// Policy is the aggregate root. All writes go through its methods, which
// dispatch into the closed transition set; reads go through State, which
// returns a deep copy so callers can never mutate the aggregate from outside.
type Policy struct {
	state *PolicyState
}

// CreatePolicy builds a new policy from a frozen lead and a carrier offer and
// immediately drafts it with the product's default begin date, an empty email
// and the no-prepayment payment type.
func CreatePolicy(lead Lead, offer Offer, carrier Carrier, now time.Time) (*Policy, error) {
	if lead.PrevPolicy != nil && lead.PrevPolicy.Carrier != carrier {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInsuranceNotCorrect,
			"carrier does not match the previous policy carrier")
	}
	if !lead.IsFreeze {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonLeadMustBeFreeze,
			"lead must be frozen before a policy can be created")
	}
	beginDate, err := DefaultBeginDate(lead.ProductCode, now)
	if err != nil {
		return nil, err
	}

	p := &Policy{state: NewPolicyState(lead, offer, carrier, now)}
	draft := initialDraftTransition{
		beginDate:   beginDate,
		email:       "",
		paymentType: PaymentWithoutAnyPay,
	}
	if err := draft.apply(p.state, now); err != nil {
		return nil, err
	}
	return p, nil
}

// RestorePolicy wraps a state rebuilt from persistence.
func RestorePolicy(state *PolicyState) *Policy {
	return &Policy{state: state}
}

// State returns a deep-copied snapshot of the aggregate state.
func (p *Policy) State() *PolicyState {
	return p.state.Clone()
}

// Reference returns the aggregate identity.
func (p *Policy) Reference() uuid.UUID {
	return p.state.Reference
}

// AccrueRewardDocument returns the live accrue reward document of the actual
// insurance state, or nil.
func (p *Policy) AccrueRewardDocument() *Document {
	return p.state.ActualInsuranceState.AccrueRewardDocument()
}

// RetentionRewardDocument returns the live retention reward document of the
// actual insurance state, or nil.
func (p *Policy) RetentionRewardDocument() *Document {
	return p.state.ActualInsuranceState.RetentionRewardDocument()
}

// UpdatePolicy re-drafts the policy with the given configuration. Nil fields
// keep their current values.
func (p *Policy) UpdatePolicy(beginDate *time.Time, email *string, paymentType *PaymentType, now time.Time) error {
	t := draftTransition{beginDate: beginDate, email: email, paymentType: paymentType}
	return t.apply(p.state, now)
}

// SetInsuranceInfo records the carrier submission result and moves the policy
// to WAIT_CALLBACK.
func (p *Policy) SetInsuranceInfo(info InsuranceInfo, now time.Time) error {
	t := waitCallbackTransition{
		insuranceReference: info.InsuranceReference,
		redirectURL:        info.RedirectURL,
	}
	return t.apply(p.state, now)
}

// UpdateStatus applies a carrier status callback.
func (p *Policy) UpdateStatus(info StatusInfo, now time.Time) error {
	switch info.StatusType {
	case StatusPayed:
		return payedTransition{info: info}.apply(p.state, now)
	case StatusCompletedInInsurance:
		return completedInInsuranceTransition{info: info}.apply(p.state, now)
	case StatusOperatorError:
		return operatorErrorTransition{info: info}.apply(p.state, now)
	case StatusRescinded:
		return rescindedTransition{info: info}.apply(p.state, now)
	case StatusReissued:
		return reissuedTransition{info: info}.apply(p.state, now)
	case StatusRestored:
		return restoredTransition{info: info}.apply(p.state, now)
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"unknown status %q in status update", info.StatusType)
	}
}

// UpdateOffer applies a refreshed carrier offer, completing the policy.
func (p *Policy) UpdateOffer(offer Offer, insuranceReference string, now time.Time) error {
	t := completedTransition{offer: offer, insuranceReference: insuranceReference}
	return t.apply(p.state, now)
}

// SetPDFDownloaded marks the policy document as fetched and stored.
func (p *Policy) SetPDFDownloaded() {
	p.state.Downloaded = true
	p.state.AddEvent(StatusUpdatedEvent{Reference: p.state.Reference, ChannelID: p.state.Channel})
}

// CreateAccrueReward opens an accrue reward document for a completed policy.
// Idempotent while a live document exists.
func (p *Policy) CreateAccrueReward(insuranceReference string, documentReference uuid.UUID, now time.Time) error {
	t := createRewardTransition{
		documentType:       DocumentAccrue,
		insuranceReference: insuranceReference,
		documentReference:  documentReference,
	}
	return t.apply(p.state, now)
}

// ConfirmAccrueReward confirms a created accrue reward document.
func (p *Policy) ConfirmAccrueReward(insuranceReference string, now time.Time) error {
	t := confirmRewardTransition{documentType: DocumentAccrue, insuranceReference: insuranceReference}
	return t.apply(p.state, now)
}

// CancelAccrueReward cancels a confirmed accrue reward document after an
// operator error.
func (p *Policy) CancelAccrueReward(insuranceReference string, now time.Time) error {
	t := cancelRewardTransition{documentType: DocumentAccrue, insuranceReference: insuranceReference}
	return t.apply(p.state, now)
}

// CreateRetentionReward opens a retention reward document for a rescinded or
// reissued policy. Idempotent while a live document exists.
func (p *Policy) CreateRetentionReward(insuranceReference string, documentReference uuid.UUID, now time.Time) error {
	t := createRewardTransition{
		documentType:       DocumentRetention,
		insuranceReference: insuranceReference,
		documentReference:  documentReference,
	}
	return t.apply(p.state, now)
}

// ConfirmRetentionReward confirms a created retention reward document.
func (p *Policy) ConfirmRetentionReward(insuranceReference string, now time.Time) error {
	t := confirmRewardTransition{documentType: DocumentRetention, insuranceReference: insuranceReference}
	return t.apply(p.state, now)
}

// CancelRetentionReward cancels a confirmed retention reward document after a
// restore.
func (p *Policy) CancelRetentionReward(insuranceReference string, now time.Time) error {
	t := cancelRewardTransition{documentType: DocumentRetention, insuranceReference: insuranceReference}
	return t.apply(p.state, now)
}

// Events returns pending domain events in emission order.
func (p *Policy) Events() []Event {
	return p.state.Events()
}

// EmptyEvents clears the pending event outbox, typically after publishing.
func (p *Policy) EmptyEvents() {
	p.state.EmptyEvents()
}
