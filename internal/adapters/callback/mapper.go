// Package callback translates raw carrier status callbacks into domain
// status updates.
package callback

import (
	"polis/internal/policy/models"
	"polis/internal/policy/service"
	dErrors "polis/pkg/domain-errors"
)

// Mapper converts carrier event types into policy statuses. Carriers report
// COMPLETED when the policy is issued on their side; the policy domain only
// considers it completed after the offer refresh, so that event maps to
// COMPLETED_IN_INSURANCE.
type Mapper struct{}

func New() Mapper { return Mapper{} }

func (Mapper) StatusInfo(in service.CallbackInput) (models.StatusInfo, error) {
	var status models.Status
	switch in.EventType {
	case "COMPLETED":
		status = models.StatusCompletedInInsurance
	case "PAYED":
		status = models.StatusPayed
	case "REISSUED":
		status = models.StatusReissued
	case "RESCINDED":
		status = models.StatusRescinded
	case "OPERATOR_ERROR":
		status = models.StatusOperatorError
	case "RESTORED":
		status = models.StatusRestored
	default:
		return models.StatusInfo{}, dErrors.Newf(dErrors.CodeValidation,
			"unknown callback event type %q", in.EventType)
	}
	return models.StatusInfo{
		StatusType:         status,
		Timestamp:          in.EventTime,
		InsuranceReference: in.InsuranceReference,
		GlobalID:           in.GlobalID,
		ExtraAttrs:         in.Attributes,
	}, nil
}
