package handler

import (
	"time"

	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/internal/policy/service"
	dErrors "polis/pkg/domain-errors"
)

type createPolicyRequest struct {
	LeadReference uuid.UUID `json:"lead_reference"`
	Carrier       string    `json:"carrier"`
}

// updatePolicyRequest carries the editable draft fields; absent fields keep
// their current values. Dates come in as civil dates, not timestamps.
type updatePolicyRequest struct {
	BeginDate   *string `json:"begin_date"`
	Email       *string `json:"email"`
	PaymentType *int    `json:"payment_type"`
}

func (r updatePolicyRequest) toInput() (service.UpdatePolicyInput, error) {
	in := service.UpdatePolicyInput{Email: r.Email}

	if r.BeginDate != nil {
		t, err := time.Parse(time.DateOnly, *r.BeginDate)
		if err != nil {
			return in, dErrors.Wrap(err, dErrors.CodeValidation, "begin_date must be YYYY-MM-DD")
		}
		in.BeginDate = &t
	}
	if r.PaymentType != nil {
		pt := models.PaymentType(*r.PaymentType)
		switch pt {
		case models.PaymentWithoutAnyPay, models.PaymentWithAnyPay, models.PaymentOnlyAnyPay:
			in.PaymentType = &pt
		default:
			return in, dErrors.Newf(dErrors.CodeValidation, "unknown payment type %d", *r.PaymentType)
		}
	}
	return in, nil
}

type callbackRequest struct {
	InsuranceReference string         `json:"insurance_reference"`
	GlobalID           string         `json:"global_id"`
	EventType          string         `json:"event_type"`
	EventTime          time.Time      `json:"event_time"`
	Attributes         map[string]any `json:"attributes"`
}
