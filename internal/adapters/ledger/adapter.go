// Package ledger is the HTTP client for the accounting system where reward
// documents live.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polis/internal/policy/models"
)

// Adapter implements the policy service's RewardLedger port.
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

type createRewardRequest struct {
	Reference   uuid.UUID       `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	ChannelID   string          `json:"channel_id"`
	InsuranceID string          `json:"insurance_id"`
}

type rewardReferenceRequest struct {
	Reference   uuid.UUID `json:"reference"`
	InsuranceID string    `json:"insurance_id"`
}

type createRewardResponse struct {
	DocumentReference uuid.UUID `json:"document_reference"`
}

// CreateAccrueReward opens the distribution reward document for the policy's
// full reward amount.
func (a *Adapter) CreateAccrueReward(ctx context.Context, state *models.PolicyState) (uuid.UUID, error) {
	return a.createDocument(ctx, "/v1/policy-rewards/pay", createRewardRequest{
		Reference:   state.Reference,
		Amount:      state.Reward,
		ChannelID:   state.Channel,
		InsuranceID: insuranceID(state.Carrier),
	})
}

func (a *Adapter) ConfirmAccrueReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error {
	return a.post(ctx, "/v1/policy-rewards/pay/confirm", rewardReferenceRequest{
		Reference:   policyReference,
		InsuranceID: insuranceID(carrier),
	}, nil)
}

// CreateRetentionReward opens the clawback document for the retention amount
// the rescind or reissue transition calculated.
func (a *Adapter) CreateRetentionReward(ctx context.Context, state *models.PolicyState) (uuid.UUID, error) {
	return a.createDocument(ctx, "/v1/policy-rewards/retention", createRewardRequest{
		Reference:   state.Reference,
		Amount:      state.RetentionReward.Decimal,
		ChannelID:   state.Channel,
		InsuranceID: insuranceID(state.Carrier),
	})
}

func (a *Adapter) ConfirmRetentionReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error {
	return a.post(ctx, "/v1/policy-rewards/retention/confirm", rewardReferenceRequest{
		Reference:   policyReference,
		InsuranceID: insuranceID(carrier),
	}, nil)
}

// CancelReward voids whichever reward document is open for the policy; the
// accounting side shares one cancel operation between both kinds.
func (a *Adapter) CancelReward(ctx context.Context, policyReference uuid.UUID, carrier models.Carrier) error {
	return a.post(ctx, "/v1/policy-rewards/cancel", rewardReferenceRequest{
		Reference:   policyReference,
		InsuranceID: insuranceID(carrier),
	}, nil)
}

func (a *Adapter) createDocument(ctx context.Context, path string, payload createRewardRequest) (uuid.UUID, error) {
	var response createRewardResponse
	if err := a.post(ctx, path, payload, &response); err != nil {
		return uuid.Nil, err
	}
	return response.DocumentReference, nil
}

func (a *Adapter) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode accounting request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build accounting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("accounting request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("accounting returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode accounting response: %w", err)
	}
	return nil
}

// insuranceID is the accounting system's identifier for a carrier.
func insuranceID(carrier models.Carrier) string {
	return strings.ToUpper(string(carrier))
}
