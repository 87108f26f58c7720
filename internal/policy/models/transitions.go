package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "polis/pkg/domain-errors"
)

// Each transition is an unexported struct carrying its payload and an apply
// method. The set is closed: dispatch happens inside the Policy facade, so the
// compiler sees every kind that can ever fire. A transition validates the
// policy-level status against its allowed set before touching anything;
// failing that check is an invariant violation, not a user error.
//
// Only draftTransition and waitCallbackTransition enforce the same-day
// submission window; every later transition checks statuses only.

func requireStatus(state *PolicyState, name string, allowed ...Status) error {
	for _, s := range allowed {
		if state.Status == s {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation,
		"not allowed status change from %q to %s", state.Status, name)
}

func requireSameDay(state *PolicyState, now time.Time) error {
	if !Date(state.CreatedTime).Equal(Date(now)) {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonPolicyExpired,
			"policy submission window has expired")
	}
	return nil
}

// draftTransition finds or creates the insurance state matching the requested
// configuration. Nil payload fields fall back to the actual state's current
// values. A sibling still in DRAFT status is edited in place rather than
// duplicated.
type draftTransition struct {
	beginDate   *time.Time
	email       *string
	paymentType *PaymentType
}

func (t draftTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "DRAFT", StatusDraft, StatusWaitCallback); err != nil {
		return err
	}
	if err := requireSameDay(state, now); err != nil {
		return err
	}

	beginDate := state.BeginDate()
	if t.beginDate != nil {
		beginDate = *t.beginDate
	}
	if err := ValidateBeginDate(state.Product, beginDate, now); err != nil {
		return err
	}

	insState := t.resolveInsuranceState(state, beginDate, now)
	if state.Status == insState.Status {
		return nil
	}
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, now, now)
	return nil
}

func (t draftTransition) resolveInsuranceState(state *PolicyState, beginDate time.Time, now time.Time) *InsuranceState {
	email := state.Email()
	if t.email != nil {
		email = *t.email
	}
	paymentType := state.PaymentType()
	if t.paymentType != nil {
		paymentType = *t.paymentType
	}

	if found := state.InsuranceStates.Search(beginDate, email, paymentType); found != nil {
		return found
	}
	if draft := state.InsuranceStates.ByStatus(StatusDraft); draft != nil {
		draft.BeginDate = Date(beginDate)
		draft.Email = email
		draft.PaymentType = paymentType
		return draft
	}
	created := NewInsuranceState(beginDate, email, paymentType, now)
	state.InsuranceStates.Add(created)
	return created
}

// initialDraftTransition materializes the very first insurance state on a
// fresh policy, using the product's default begin date. It bypasses the
// begin-date fallback because there is no actual state yet.
type initialDraftTransition struct {
	beginDate   time.Time
	email       string
	paymentType PaymentType
}

func (t initialDraftTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "DRAFT", StatusNone); err != nil {
		return err
	}
	if err := requireSameDay(state, now); err != nil {
		return err
	}
	if err := ValidateBeginDate(state.Product, t.beginDate, now); err != nil {
		return err
	}
	insState := NewInsuranceState(t.beginDate, t.email, t.paymentType, now)
	state.InsuranceStates.Add(insState)
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, now, now)
	return nil
}

// waitCallbackTransition records the carrier correlation id and redirect URL
// issued on submission.
type waitCallbackTransition struct {
	insuranceReference string
	redirectURL        string
}

func (t waitCallbackTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "WAIT_CALLBACK", StatusDraft, StatusWaitCallback); err != nil {
		return err
	}
	if err := requireSameDay(state, now); err != nil {
		return err
	}
	actual := state.ActualInsuranceState
	actual.InsuranceReference = t.insuranceReference
	actual.RedirectURL = t.redirectURL
	actual.SetStatus(StatusWaitCallback, now)
	if state.Status == StatusWaitCallback {
		return nil
	}
	state.SetStatus(StatusWaitCallback, now, now)
	return nil
}

func findByInsuranceReference(state *PolicyState, insuranceReference string) (*InsuranceState, error) {
	insState := state.InsuranceStates.ByInsuranceReference(insuranceReference)
	if insState == nil {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"no insurance state with carrier reference %q", insuranceReference)
	}
	return insState, nil
}

func findByGlobalID(state *PolicyState, globalID string) (*InsuranceState, error) {
	insState := state.InsuranceStates.ByGlobalID(globalID)
	if insState == nil {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"no insurance state with global id %q", globalID)
	}
	return insState, nil
}

// payedTransition reacts to a payment callback. A policy already completed
// keeps its status; the payment is recorded in both history logs only.
type payedTransition struct {
	info StatusInfo
}

func (t payedTransition) apply(state *PolicyState, now time.Time) error {
	err := requireStatus(state, "PAYED",
		StatusDraft, StatusWaitCallback, StatusPayed, StatusCompletedInInsurance, StatusCompleted)
	if err != nil {
		return err
	}
	insState, err := findByInsuranceReference(state, t.info.InsuranceReference)
	if err != nil {
		return err
	}
	if state.Status == StatusCompletedInInsurance || state.Status == StatusCompleted {
		state.History.Add(StatusPayed, t.info.Timestamp)
		insState.History.Add(StatusPayed, t.info.Timestamp)
		return nil
	}
	insState.SetStatus(StatusPayed, t.info.Timestamp)
	if state.Status == StatusPayed {
		return nil
	}
	state.ActualInsuranceState = insState
	state.SetStatus(StatusPayed, t.info.Timestamp, now)
	return nil
}

// completedInInsuranceTransition records the carrier-issued global id. The
// completion event fires only on the first entry into this status.
type completedInInsuranceTransition struct {
	info StatusInfo
}

func (t completedInInsuranceTransition) apply(state *PolicyState, now time.Time) error {
	err := requireStatus(state, "COMPLETED_IN_INSURANCE",
		StatusDraft, StatusWaitCallback, StatusPayed, StatusCompletedInInsurance)
	if err != nil {
		return err
	}
	insState, err := findByInsuranceReference(state, t.info.InsuranceReference)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusCompletedInInsurance, t.info.Timestamp)
	insState.GlobalID = t.info.GlobalID
	if state.Status == StatusCompletedInInsurance {
		return nil
	}
	state.ActualInsuranceState = insState
	state.SetStatus(StatusCompletedInInsurance, t.info.Timestamp, now)
	state.AddEvent(CompletedInInsuranceEvent{
		Reference:          state.Reference,
		InsuranceReference: t.info.InsuranceReference,
	})
	return nil
}

// completedTransition re-reads commercial terms from a refreshed offer and
// promotes the policy to COMPLETED unless it is already there.
type completedTransition struct {
	offer              Offer
	insuranceReference string
}

func (t completedTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "COMPLETED", StatusCompletedInInsurance, StatusCompleted); err != nil {
		return err
	}
	insState, err := findByInsuranceReference(state, t.insuranceReference)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusCompleted, now)
	if state.Status == StatusCompleted {
		return nil
	}
	state.ParseOffer(t.offer)
	state.ActualInsuranceState = insState
	state.SetStatus(StatusCompleted, now, now)
	state.AddEvent(CompletedEvent{
		Reference:          state.Reference,
		InsuranceReference: state.InsuranceReference(),
	})
	return nil
}

// operatorErrorTransition marks the carrier-identified state as an operator
// error, computes the clawback, and prefers reverting the policy to a sibling
// that is still COMPLETED. The operator error event fires only when no such
// sibling exists.
type operatorErrorTransition struct {
	info StatusInfo
}

func (t operatorErrorTransition) apply(state *PolicyState, now time.Time) error {
	err := requireStatus(state, "OPERATOR_ERROR",
		StatusCompleted, StatusCompletedInInsurance, StatusRestored)
	if err != nil {
		return err
	}
	insState, err := findByGlobalID(state, t.info.GlobalID)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusOperatorError, t.info.Timestamp)
	reward, err := OperatorErrorRetentionReward(state, t.info.Timestamp)
	if err != nil {
		return err
	}
	state.RetentionReward.Decimal = reward
	state.RetentionReward.Valid = true
	if completed := state.InsuranceStates.ByStatus(StatusCompleted); completed != nil {
		insState = completed
	}
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, t.info.Timestamp, now)
	if state.Status == StatusOperatorError {
		state.AddEvent(OperatorErrorEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	}
	return nil
}

// rescindedTransition follows the same resolution pattern as operator error,
// additionally merging callback attributes before the clawback calculation.
type rescindedTransition struct {
	info StatusInfo
}

func (t rescindedTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "RESCINDED", StatusCompleted, StatusRestored); err != nil {
		return err
	}
	insState, err := findByGlobalID(state, t.info.GlobalID)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusRescinded, t.info.Timestamp)
	state.UpdateAttributes(t.info.ExtraAttrs)
	reward, err := RescindedRetentionReward(state, t.info.Timestamp)
	if err != nil {
		return err
	}
	state.RetentionReward.Decimal = reward
	state.RetentionReward.Valid = true
	if completed := state.InsuranceStates.ByStatus(StatusCompleted); completed != nil {
		insState = completed
	}
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, t.info.Timestamp, now)
	if state.Status == StatusRescinded {
		state.AddEvent(RescindedEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	}
	return nil
}

// reissuedTransition switches the actual state unconditionally; there is no
// COMPLETED-sibling fallback on reissue.
type reissuedTransition struct {
	info StatusInfo
}

func (t reissuedTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "REISSUED", StatusCompleted, StatusRestored); err != nil {
		return err
	}
	insState, err := findByGlobalID(state, t.info.GlobalID)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusReissued, t.info.Timestamp)
	state.UpdateAttributes(t.info.ExtraAttrs)
	reward, err := ReissuedRetentionReward(state, t.info.Timestamp)
	if err != nil {
		return err
	}
	state.RetentionReward.Decimal = reward
	state.RetentionReward.Valid = true
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, t.info.Timestamp, now)
	if state.Status == StatusReissued {
		state.AddEvent(ReissuedEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	}
	return nil
}

// restoredTransition brings a reissued policy back. Like reissue, the actual
// state switches unconditionally.
type restoredTransition struct {
	info StatusInfo
}

func (t restoredTransition) apply(state *PolicyState, now time.Time) error {
	if err := requireStatus(state, "RESTORED", StatusReissued); err != nil {
		return err
	}
	insState, err := findByGlobalID(state, t.info.GlobalID)
	if err != nil {
		return err
	}
	insState.SetStatus(StatusRestored, t.info.Timestamp)
	state.UpdateAttributes(t.info.ExtraAttrs)
	state.ActualInsuranceState = insState
	state.SetStatus(insState.Status, t.info.Timestamp, now)
	if state.Status == StatusRestored {
		state.AddEvent(RestoredEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	}
	return nil
}

// createRewardTransition is idempotent: it only creates a document and raises
// an event when no live document of its type exists yet.
type createRewardTransition struct {
	documentType       DocumentType
	insuranceReference string
	documentReference  uuid.UUID
}

func (t createRewardTransition) apply(state *PolicyState, now time.Time) error {
	switch t.documentType {
	case DocumentAccrue:
		if err := requireStatus(state, "CREATE_ACCRUE_REWARD", StatusCompleted); err != nil {
			return err
		}
	case DocumentRetention:
		if err := requireStatus(state, "CREATE_RETENTION_REWARD", StatusRescinded, StatusReissued); err != nil {
			return err
		}
	}
	insState, err := findByInsuranceReference(state, t.insuranceReference)
	if err != nil {
		return err
	}
	if insState.Documents.ByType(t.documentType) != nil {
		return nil
	}
	switch t.documentType {
	case DocumentAccrue:
		insState.CreateAccrueReward(t.documentReference)
	case DocumentRetention:
		insState.CreateRetentionReward(t.documentReference)
	}
	state.UpdatedTime = now
	switch t.documentType {
	case DocumentAccrue:
		state.AddEvent(AccrueRewardCreatedEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	case DocumentRetention:
		state.AddEvent(RetentionRewardCreatedEvent{
			Reference:          state.Reference,
			InsuranceReference: state.InsuranceReference(),
		})
	}
	return nil
}

// confirmRewardTransition silently confirms a CREATED document; anything else
// is a no-op. No event is raised.
type confirmRewardTransition struct {
	documentType       DocumentType
	insuranceReference string
}

func (t confirmRewardTransition) apply(state *PolicyState, now time.Time) error {
	switch t.documentType {
	case DocumentAccrue:
		if err := requireStatus(state, "CONFIRM_ACCRUE_REWARD", StatusCompleted); err != nil {
			return err
		}
	case DocumentRetention:
		if err := requireStatus(state, "CONFIRM_RETENTION_REWARD", StatusRescinded, StatusReissued); err != nil {
			return err
		}
	}
	insState, err := findByInsuranceReference(state, t.insuranceReference)
	if err != nil {
		return err
	}
	if doc := insState.Documents.ByType(t.documentType); doc != nil && doc.IsCreated() {
		doc.Confirm()
		state.UpdatedTime = now
	}
	return nil
}

// cancelRewardTransition silently cancels a CONFIRMED document; anything else
// is a no-op. No event is raised.
type cancelRewardTransition struct {
	documentType       DocumentType
	insuranceReference string
}

func (t cancelRewardTransition) apply(state *PolicyState, now time.Time) error {
	switch t.documentType {
	case DocumentAccrue:
		if err := requireStatus(state, "CANCEL_ACCRUE_REWARD", StatusOperatorError); err != nil {
			return err
		}
	case DocumentRetention:
		if err := requireStatus(state, "CANCEL_RETENTION_REWARD", StatusRestored); err != nil {
			return err
		}
	}
	insState, err := findByInsuranceReference(state, t.insuranceReference)
	if err != nil {
		return err
	}
	if doc := insState.Documents.ByType(t.documentType); doc != nil && doc.IsConfirmed() {
		doc.Cancel()
		state.UpdatedTime = now
	}
	return nil
}
