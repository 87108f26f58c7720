package handler

import (
	"time"

	"github.com/google/uuid"

	"polis/internal/policy/models"
)

type policyResponse struct {
	Reference       uuid.UUID              `json:"reference"`
	Status          string                 `json:"status"`
	Product         string                 `json:"product"`
	Insurance       string                 `json:"insurance"`
	Channel         string                 `json:"channel"`
	Phone           string                 `json:"phone"`
	Premium         int                    `json:"premium"`
	Cost            int                    `json:"cost"`
	Reward          string                 `json:"reward"`
	RetentionReward *string                `json:"retention_reward,omitempty"`
	Conditions      []string               `json:"conditions"`
	Attributes      map[string]any         `json:"attributes"`
	Structure       []models.StructureItem `json:"structure"`
	Insurer         models.Insurer         `json:"insurer"`
	Period          models.Period          `json:"period"`
	PrevGlobalID    string                 `json:"prev_global_id,omitempty"`
	Downloaded      bool                   `json:"downloaded"`
	BeginDate       string                 `json:"begin_date,omitempty"`
	EndDate         string                 `json:"end_date,omitempty"`
	Email           string                 `json:"email,omitempty"`
	PaymentType     *int                   `json:"payment_type,omitempty"`
	RedirectURL     string                 `json:"redirect_url,omitempty"`
	GlobalID        string                 `json:"global_id,omitempty"`
	History         []statusRecord         `json:"history"`
	CreatedTime     time.Time              `json:"created_time"`
	UpdatedTime     time.Time              `json:"updated_time"`
}

type statusRecord struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type pdfResponse struct {
	URL string `json:"url"`
}

type callbackResponse struct {
	Reference uuid.UUID `json:"reference"`
	Status    string    `json:"status"`
}

func fromState(state *models.PolicyState) policyResponse {
	resp := policyResponse{
		Reference:   state.Reference,
		Status:      string(state.Status),
		Product:     string(state.Product),
		Insurance:   string(state.Carrier),
		Channel:     state.Channel,
		Phone:       state.Phone,
		Premium:     state.Premium,
		Cost:        state.Cost,
		Reward:      state.Reward.String(),
		Conditions:  state.Conditions,
		Attributes:  state.Attributes,
		Structure:   state.Structure,
		Insurer:     state.Insurer,
		Period:      state.Period,
		Downloaded:  state.Downloaded,
		CreatedTime: state.CreatedTime,
		UpdatedTime: state.UpdatedTime,
	}
	if state.RetentionReward.Valid {
		v := state.RetentionReward.Decimal.String()
		resp.RetentionReward = &v
	}
	if state.PrevPolicy != nil {
		resp.PrevGlobalID = state.PrevPolicy.PrevGlobalID
	}
	if state.History != nil {
		for _, rec := range state.History.Records() {
			resp.History = append(resp.History, statusRecord{
				Status:    string(rec.Status),
				Timestamp: rec.Timestamp,
			})
		}
	}
	if s := state.ActualInsuranceState; s != nil {
		resp.BeginDate = s.BeginDate.Format(time.DateOnly)
		resp.EndDate = state.EndDate().Format(time.DateOnly)
		resp.Email = s.Email
		pt := int(s.PaymentType)
		resp.PaymentType = &pt
		resp.RedirectURL = s.RedirectURL
		resp.GlobalID = s.GlobalID
	}
	return resp
}
