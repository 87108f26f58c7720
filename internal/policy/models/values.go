package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Date strips a timestamp down to its civil date in UTC. Begin dates and the
// same-day submission window compare on this.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Period is the coverage period of a policy, e.g. {year, 1}.
type Period struct {
	Type  PeriodType `json:"type"`
	Value int        `json:"value"`
}

// EndDate computes the coverage end for a given begin date. A yearly period
// ends the day before the same calendar day next year.
func (p Period) EndDate(beginDate time.Time) time.Time {
	begin := Date(beginDate)
	switch p.Type {
	case PeriodYear:
		end := begin.AddDate(p.Value, 0, 0)
		if end.Day() == begin.Day() {
			end = end.AddDate(0, 0, -1)
		}
		return end
	case PeriodMonth:
		return begin.AddDate(0, p.Value, 0)
	default:
		return begin.AddDate(0, 0, p.Value)
	}
}

// StatusRecord is an immutable (status, timestamp) pair. Equality is by both
// fields, which is what deduplicates history entries.
type StatusRecord struct {
	Status    Status
	Timestamp time.Time
}

// StructureDriverAttrs, StructureVehicleAttrs and StructureLimitAttrs are the
// typed attributes of a structure item; exactly one is set depending on the
// item type.
type StructureDriverAttrs struct {
	IIN          string `json:"iin"`
	IsPrivileged bool   `json:"is_privileged"`
}

type StructureVehicleAttrs struct {
	RegistrationNumber string `json:"registration_number"`
}

type StructureLimitAttrs struct {
	Value int `json:"value"`
}

// StructureItem is one element of the insured structure: a driver, a vehicle
// or a coverage limit.
type StructureItem struct {
	ItemReference uuid.UUID              `json:"item_reference"`
	Title         string                 `json:"title"`
	Type          StructureItemType      `json:"type"`
	Driver        *StructureDriverAttrs  `json:"driver,omitempty"`
	Vehicle       *StructureVehicleAttrs `json:"vehicle,omitempty"`
	Limit         *StructureLimitAttrs   `json:"limit,omitempty"`
}

// Insurer is the policy holder.
type Insurer struct {
	Title        string    `json:"title"`
	IsPrivileged bool      `json:"is_privileged"`
	Reference    uuid.UUID `json:"reference"`
}

// PrevPolicy links a reissue lead to the policy it replaces.
type PrevPolicy struct {
	PrevGlobalID string  `json:"prev_global_id"`
	Carrier      Carrier `json:"insurance"`
}

// Lead is the sales lead a policy is created from, as the lead domain returns
// it.
type Lead struct {
	Reference        uuid.UUID
	IsFreeze         bool
	Phone            string
	CreatorReference uuid.UUID
	Period           Period
	PrevPolicy       *PrevPolicy
	ProductCode      Product
	Channel          string
	Insurer          Insurer
	Structure        []StructureItem
}

// Offer carries the commercial terms quoted by a carrier for a lead.
type Offer struct {
	Premium    int
	Cost       int
	Reward     decimal.Decimal
	Attributes map[string]any
	Conditions []string
}

// InsuranceInfo is what a carrier returns on successful submission.
type InsuranceInfo struct {
	InsuranceReference string
	RedirectURL        string
}

// StatusInfo is a carrier callback translated into domain terms. ExtraAttrs
// are merged into policy attributes by the rescind/reissue/restore
// transitions.
type StatusInfo struct {
	StatusType         Status
	Timestamp          time.Time
	InsuranceReference string
	GlobalID           string
	ExtraAttrs         map[string]any
}
