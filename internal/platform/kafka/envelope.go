// Package kafka carries policy domain events over a Kafka topic. The service
// publishes every aggregate event; the consumer feeds them back into the
// service's event reactions so choreography survives process restarts.
package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"polis/internal/policy/models"
)

// envelope is the wire form of a domain event. Records are keyed by the
// policy reference so all events of one policy stay on one partition, in
// order.
type envelope struct {
	Name               string    `json:"name"`
	PolicyReference    uuid.UUID `json:"policy_reference"`
	InsuranceReference string    `json:"insurance_reference,omitempty"`
	ChannelID          string    `json:"channel_id,omitempty"`
}

func marshalEvent(event models.Event) ([]byte, error) {
	env := envelope{
		Name:            event.EventName(),
		PolicyReference: event.PolicyReference(),
	}
	switch e := event.(type) {
	case models.StatusUpdatedEvent:
		env.ChannelID = e.ChannelID
	case models.CompletedInInsuranceEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.CompletedEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.OperatorErrorEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.RescindedEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.ReissuedEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.RestoredEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.AccrueRewardCreatedEvent:
		env.InsuranceReference = e.InsuranceReference
	case models.RetentionRewardCreatedEvent:
		env.InsuranceReference = e.InsuranceReference
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}
	return json.Marshal(env)
}

func unmarshalEvent(data []byte) (models.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	ref, ins := env.PolicyReference, env.InsuranceReference
	switch env.Name {
	case models.StatusUpdatedEvent{}.EventName():
		return models.StatusUpdatedEvent{Reference: ref, ChannelID: env.ChannelID}, nil
	case models.CompletedInInsuranceEvent{}.EventName():
		return models.CompletedInInsuranceEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.CompletedEvent{}.EventName():
		return models.CompletedEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.OperatorErrorEvent{}.EventName():
		return models.OperatorErrorEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.RescindedEvent{}.EventName():
		return models.RescindedEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.ReissuedEvent{}.EventName():
		return models.ReissuedEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.RestoredEvent{}.EventName():
		return models.RestoredEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.AccrueRewardCreatedEvent{}.EventName():
		return models.AccrueRewardCreatedEvent{Reference: ref, InsuranceReference: ins}, nil
	case models.RetentionRewardCreatedEvent{}.EventName():
		return models.RetentionRewardCreatedEvent{Reference: ref, InsuranceReference: ins}, nil
	default:
		return nil, fmt.Errorf("unknown event name %q", env.Name)
	}
}
