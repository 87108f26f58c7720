// Package carrier is the HTTP client for the carrier gateway: it submits
// policy drafts to the insurance companies and fetches issued documents.
package carrier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"polis/internal/policy/models"
)

// Adapter implements the policy service's CarrierAdapter port.
type Adapter struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{baseURL: baseURL, client: client}
}

type savePolicyRequest struct {
	ProductID      string        `json:"product_id"`
	DraftReference uuid.UUID     `json:"draft_reference"`
	Insurance      string        `json:"insurance"`
	Insurer        payloadPerson `json:"insurer"`
	Structure      payloadStruct `json:"structure"`
	Phone          string        `json:"phone"`
	StartDate      string        `json:"start_date"`
	Period         models.Period `json:"period"`
	PaymentType    string        `json:"payment_type"`
	Email          string        `json:"email,omitempty"`
	PrevGlobalID   string        `json:"prev_global_id,omitempty"`
}

type payloadPerson struct {
	IIN          string `json:"iin,omitempty"`
	Reference    string `json:"reference,omitempty"`
	IsPrivileged bool   `json:"is_privileged"`
}

type payloadVehicle struct {
	RegistrationNumber string `json:"registration_number"`
}

type payloadStruct struct {
	Drivers []payloadPerson `json:"drivers"`
	Vehicle *payloadVehicle `json:"vehicle"`
	Limit   int             `json:"limit"`
}

type savePolicyResponse struct {
	CorrelationID string `json:"correlation_id"`
	RedirectURL   string `json:"redirect_url"`
}

type pdfResponse struct {
	Data string `json:"data"`
}

// SavePolicy submits the draft to the carrier behind the gateway and returns
// the carrier-side correlation reference plus the payment redirect.
func (a *Adapter) SavePolicy(ctx context.Context, state *models.PolicyState) (models.InsuranceInfo, error) {
	payload := savePolicyRequest{
		ProductID:      string(state.Product),
		DraftReference: state.ActualInsuranceState.Reference,
		Insurance:      string(state.Carrier),
		Insurer: payloadPerson{
			Reference:    state.Insurer.Reference.String(),
			IsPrivileged: state.Insurer.IsPrivileged,
		},
		Structure:    toPayloadStruct(state.Structure),
		Phone:        state.Phone,
		StartDate:    state.BeginDate().Format(time.DateOnly),
		Period:       state.Period,
		PaymentType:  paymentType(state.PaymentType()),
		Email:        state.Email(),
		PrevGlobalID: state.PrevGlobalID(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.InsuranceInfo{}, fmt.Errorf("encode save policy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/policies/draft", bytes.NewReader(body))
	if err != nil {
		return models.InsuranceInfo{}, fmt.Errorf("build save policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return models.InsuranceInfo{}, fmt.Errorf("carrier gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.InsuranceInfo{}, fmt.Errorf("carrier gateway returned %s", resp.Status)
	}
	var response savePolicyResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return models.InsuranceInfo{}, fmt.Errorf("decode save policy response: %w", err)
	}
	return models.InsuranceInfo{
		InsuranceReference: response.CorrelationID,
		RedirectURL:        response.RedirectURL,
	}, nil
}

// GetPolicyPDF fetches the issued document. The gateway returns it base64
// encoded.
func (a *Adapter) GetPolicyPDF(ctx context.Context, carrier models.Carrier, insuranceReference string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/policies/%s/pdf?insurance=%s", a.baseURL, insuranceReference, carrier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build policy pdf request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier gateway returned %s", resp.Status)
	}
	var response pdfResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode policy pdf response: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(response.Data)
	if err != nil {
		return nil, fmt.Errorf("decode policy pdf payload: %w", err)
	}
	return data, nil
}

func toPayloadStruct(structure []models.StructureItem) payloadStruct {
	result := payloadStruct{Drivers: []payloadPerson{}}
	for _, item := range structure {
		switch item.Type {
		case models.StructureDriver:
			if item.Driver != nil {
				result.Drivers = append(result.Drivers, payloadPerson{
					IIN:          item.Driver.IIN,
					Reference:    item.ItemReference.String(),
					IsPrivileged: item.Driver.IsPrivileged,
				})
			}
		case models.StructureVehicle:
			if item.Vehicle != nil {
				result.Vehicle = &payloadVehicle{RegistrationNumber: item.Vehicle.RegistrationNumber}
			}
		case models.StructureLimit:
			if item.Limit != nil {
				result.Limit = item.Limit.Value
			}
		}
	}
	return result
}

func paymentType(p models.PaymentType) string {
	switch p {
	case models.PaymentWithAnyPay:
		return "with_any_pay"
	case models.PaymentOnlyAnyPay:
		return "only_any_pay"
	default:
		return "without_any_pay"
	}
}
