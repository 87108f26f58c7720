package models

import (
	"strings"

	dErrors "polis/pkg/domain-errors"
)

// Status is the lifecycle status of a policy or of one insurance state.
// StatusNone is the zero value of a policy state that has not been
// materialized by its first draft transition yet.
type Status string

const (
	StatusNone                 Status = ""
	StatusDraft                Status = "DRAFT"
	StatusWaitCallback         Status = "WAIT_CALLBACK"
	StatusPayed                Status = "PAYED"
	StatusCompletedInInsurance Status = "COMPLETED_IN_INSURANCE"
	StatusCompleted            Status = "COMPLETED"
	StatusRescinded            Status = "RESCINDED"
	StatusReissued             Status = "REISSUED"
	StatusRestored             Status = "RESTORED"
	StatusOperatorError        Status = "OPERATOR_ERROR"
)

// ParseStatus maps a raw status string onto a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusDraft, StatusWaitCallback, StatusPayed, StatusCompletedInInsurance,
		StatusCompleted, StatusRescinded, StatusReissued, StatusRestored, StatusOperatorError:
		return s, nil
	}
	return StatusNone, dErrors.Newf(dErrors.CodeValidation, "unknown policy status %q", raw)
}

// Product identifies the insurance product a policy is issued for.
type Product string

const (
	ProductOsgpoVts   Product = "osgpo-vts"
	ProductCascoLimit Product = "casco-limit"
)

// ParseProduct normalizes underscores and case, matching the identifiers the
// lead domain sends.
func ParseProduct(raw string) (Product, error) {
	p := Product(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-"))
	switch p {
	case ProductOsgpoVts, ProductCascoLimit:
		return p, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown product %q", raw)
}

// Carrier is the external insurance company a policy is placed with.
type Carrier string

const (
	CarrierEurasia    Carrier = "eurasia"
	CarrierJusan      Carrier = "jgarant"
	CarrierInterteach Carrier = "interteach"
	CarrierBasel      Carrier = "basel"
	CarrierFfins      Carrier = "ffins"
	CarrierHalyk      Carrier = "halyk"
)

// ParseCarrier maps a raw carrier name onto a Carrier, case-insensitively.
func ParseCarrier(raw string) (Carrier, error) {
	c := Carrier(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CarrierEurasia, CarrierJusan, CarrierInterteach, CarrierBasel, CarrierFfins, CarrierHalyk:
		return c, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown carrier %q", raw)
}

// PaymentType describes how the customer pays for the policy.
type PaymentType int

const (
	PaymentWithoutAnyPay PaymentType = 0
	PaymentWithAnyPay    PaymentType = 1
	PaymentOnlyAnyPay    PaymentType = 2
)

// PeriodType is the unit of a coverage period.
type PeriodType string

const (
	PeriodYear  PeriodType = "year"
	PeriodMonth PeriodType = "month"
	PeriodDay   PeriodType = "day"
)

// DocumentType distinguishes the financial instruments tracked per insurance
// state.
type DocumentType string

const (
	DocumentAccrue    DocumentType = "ACCRUE"
	DocumentRetention DocumentType = "RETENTION"
)

// DocumentStatus progresses monotonically: CREATED -> CONFIRMED -> CANCELED.
type DocumentStatus string

const (
	DocumentCreated   DocumentStatus = "CREATED"
	DocumentConfirmed DocumentStatus = "CONFIRMED"
	DocumentCanceled  DocumentStatus = "CANCELED"
)

// StructureItemType tags the typed attributes of one structure item.
type StructureItemType string

const (
	StructureDriver  StructureItemType = "driver"
	StructureVehicle StructureItemType = "vehicle"
	StructureLimit   StructureItemType = "limit"
)
