package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicyState is the mutable data holder behind the Policy aggregate:
// identity, commercial terms, the insurance state collection with its actual
// pointer, status history and the pending event outbox. Only transitions
// mutate it; callers get copy-on-read snapshots through Policy.State.
type PolicyState struct {
	Reference       uuid.UUID
	Product         Product
	Carrier         Carrier
	Status          Status
	Channel         string
	Phone           string
	PrevPolicy      *PrevPolicy
	Downloaded      bool
	Premium         int
	Cost            int
	Reward          decimal.Decimal
	RetentionReward decimal.NullDecimal
	Conditions      []string
	Attributes      map[string]any
	Structure       []StructureItem
	Insurer         Insurer
	LeadReference   uuid.UUID
	CreatorReference uuid.UUID
	Period          Period

	History              *StatusHistory
	InsuranceStates      *InsuranceStateCollection
	ActualInsuranceState *InsuranceState

	CreatedTime time.Time
	UpdatedTime time.Time

	events     []Event
	seenEvents map[Event]struct{}
}

// NewPolicyState builds a fresh, not-yet-materialized state from a lead and
// an offer. Status stays StatusNone until the first draft transition runs.
func NewPolicyState(lead Lead, offer Offer, carrier Carrier, now time.Time) *PolicyState {
	s := &PolicyState{
		Reference:       uuid.New(),
		Carrier:         carrier,
		Status:          StatusNone,
		History:         NewStatusHistory(),
		InsuranceStates: NewInsuranceStateCollection(),
		CreatedTime:     now,
		UpdatedTime:     now,
		seenEvents:      make(map[Event]struct{}),
	}
	s.ParseOffer(offer)
	s.ParseLead(lead)
	return s
}

// RestorePolicyState rebuilds a state from persisted data. The repository is
// responsible for its integrity; no validation happens here.
func RestorePolicyState(
	reference uuid.UUID,
	product Product,
	carrier Carrier,
	status Status,
	channel, phone string,
	prevPolicy *PrevPolicy,
	downloaded bool,
	premium, cost int,
	reward decimal.Decimal,
	retentionReward decimal.NullDecimal,
	conditions []string,
	attributes map[string]any,
	structure []StructureItem,
	insurer Insurer,
	leadReference, creatorReference uuid.UUID,
	period Period,
	actualInsuranceStateReference uuid.UUID,
	statusRecords []StatusRecord,
	insuranceStates []*InsuranceState,
	createdTime, updatedTime time.Time,
) *PolicyState {
	s := &PolicyState{
		Reference:        reference,
		Product:          product,
		Carrier:          carrier,
		Status:           status,
		Channel:          channel,
		Phone:            phone,
		PrevPolicy:       prevPolicy,
		Downloaded:       downloaded,
		Premium:          premium,
		Cost:             cost,
		Reward:           reward,
		RetentionReward:  retentionReward,
		Conditions:       conditions,
		Attributes:       attributes,
		Structure:        structure,
		Insurer:          insurer,
		LeadReference:    leadReference,
		CreatorReference: creatorReference,
		Period:           period,
		History:          NewStatusHistory(statusRecords...),
		InsuranceStates:  NewInsuranceStateCollection(insuranceStates...),
		CreatedTime:      createdTime,
		UpdatedTime:      updatedTime,
		seenEvents:       make(map[Event]struct{}),
	}
	s.ActualInsuranceState = s.InsuranceStates.ByReference(actualInsuranceStateReference)
	return s
}

// ParseOffer re-reads commercial terms from an offer. The Completed transition
// calls this with the refreshed offer.
func (s *PolicyState) ParseOffer(offer Offer) {
	s.Premium = offer.Premium
	s.Cost = offer.Cost
	s.Reward = offer.Reward
	s.Conditions = append([]string(nil), offer.Conditions...)
	attrs := make(map[string]any, len(offer.Attributes))
	for k, v := range offer.Attributes {
		attrs[k] = v
	}
	s.Attributes = attrs
}

// ParseLead copies the lead's identifying and structural fields.
func (s *PolicyState) ParseLead(lead Lead) {
	s.Product = lead.ProductCode
	s.Channel = lead.Channel
	s.Phone = lead.Phone
	s.Period = lead.Period
	s.Structure = append([]StructureItem(nil), lead.Structure...)
	s.Insurer = lead.Insurer
	s.PrevPolicy = lead.PrevPolicy
	s.LeadReference = lead.Reference
	s.CreatorReference = lead.CreatorReference
}

// SetStatus moves the policy to the given status, records history, bumps the
// updated time and raises a StatusUpdatedEvent.
func (s *PolicyState) SetStatus(status Status, timestamp, now time.Time) {
	s.Status = status
	s.History.Add(status, timestamp)
	s.UpdatedTime = now
	s.AddEvent(StatusUpdatedEvent{Reference: s.Reference, ChannelID: s.Channel})
}

// UpdateAttributes merges extra attributes into the policy attributes,
// overwriting on key collision.
func (s *PolicyState) UpdateAttributes(extraAttrs map[string]any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any, len(extraAttrs))
	}
	for k, v := range extraAttrs {
		s.Attributes[k] = v
	}
}

// Accessors resolving through the actual insurance state.

func (s *PolicyState) BeginDate() time.Time       { return s.ActualInsuranceState.BeginDate }
func (s *PolicyState) Email() string              { return s.ActualInsuranceState.Email }
func (s *PolicyState) PaymentType() PaymentType   { return s.ActualInsuranceState.PaymentType }
func (s *PolicyState) RedirectURL() string        { return s.ActualInsuranceState.RedirectURL }
func (s *PolicyState) GlobalID() string           { return s.ActualInsuranceState.GlobalID }

// InsuranceReference is the carrier correlation id of the actual state; empty
// until submission.
func (s *PolicyState) InsuranceReference() string {
	return s.ActualInsuranceState.InsuranceReference
}

// EndDate derives the coverage end from the period and the actual begin date.
func (s *PolicyState) EndDate() time.Time {
	return s.Period.EndDate(s.ActualInsuranceState.BeginDate)
}

// PrevGlobalID returns the replaced policy's carrier id, if any.
func (s *PolicyState) PrevGlobalID() string {
	if s.PrevPolicy == nil {
		return ""
	}
	return s.PrevPolicy.PrevGlobalID
}

// AddEvent appends an event to the outbox unless the identical event value
// was already raised since the last drain.
func (s *PolicyState) AddEvent(event Event) {
	if s.seenEvents == nil {
		s.seenEvents = make(map[Event]struct{})
	}
	if _, ok := s.seenEvents[event]; ok {
		return
	}
	s.seenEvents[event] = struct{}{}
	s.events = append(s.events, event)
}

// Events returns pending events in emission order.
func (s *PolicyState) Events() []Event {
	return append([]Event(nil), s.events...)
}

// EmptyEvents clears the outbox.
func (s *PolicyState) EmptyEvents() {
	s.events = nil
	s.seenEvents = make(map[Event]struct{})
}

// Clone deep-copies the state: insurance states, documents and history are
// copied, and the actual-state pointer is re-resolved into the copied
// collection. The pending event outbox is not carried over.
func (s *PolicyState) Clone() *PolicyState {
	cp := *s
	cp.Conditions = append([]string(nil), s.Conditions...)
	cp.Structure = append([]StructureItem(nil), s.Structure...)
	if s.Attributes != nil {
		cp.Attributes = make(map[string]any, len(s.Attributes))
		for k, v := range s.Attributes {
			cp.Attributes[k] = v
		}
	}
	if s.PrevPolicy != nil {
		pp := *s.PrevPolicy
		cp.PrevPolicy = &pp
	}
	cp.History = s.History.clone()
	cp.InsuranceStates = s.InsuranceStates.clone()
	if s.ActualInsuranceState != nil {
		cp.ActualInsuranceState = cp.InsuranceStates.ByReference(s.ActualInsuranceState.Reference)
	}
	cp.events = nil
	cp.seenEvents = make(map[Event]struct{})
	return &cp
}
