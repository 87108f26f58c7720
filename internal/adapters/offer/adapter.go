// Package offer is the HTTP client for the offer gateway, used to refresh the
// commercial terms of an already materialized policy.
package offer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polis/internal/policy/models"
)

// Adapter implements the policy service's OfferProvider port.
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

type offerRequest struct {
	Insurance            string         `json:"insurance"`
	ProductID            string         `json:"product_id"`
	Period               string         `json:"period"`
	Insurer              offerInsurer   `json:"insurer"`
	ChannelID            string         `json:"channel_id"`
	PrevGlobalID         string         `json:"prev_global_id,omitempty"`
	AdditionalAttributes map[string]any `json:"additional_attributes,omitempty"`
	Structure            []offerItem    `json:"structure"`
}

type offerInsurer struct {
	IIN string `json:"iin"`
}

type offerItem struct {
	ItemReference uuid.UUID `json:"item_reference"`
	Type          string    `json:"type"`
	Attrs         any       `json:"attrs"`
}

type offerResponse struct {
	FullPremium         int             `json:"full_premium"`
	ExtraPay            int             `json:"extra_pay"`
	ExtraPayReward      decimal.Decimal `json:"extra_pay_reward"`
	Attributes          map[string]any  `json:"attributes"`
	InsuranceConditions []string        `json:"insurance_conditions"`
}

// GetOffer asks the gateway to requote the policy as it currently stands.
func (a *Adapter) GetOffer(ctx context.Context, state *models.PolicyState) (models.Offer, error) {
	payload := offerRequest{
		Insurance:            string(state.Carrier),
		ProductID:            string(state.Product),
		Period:               offerPeriod(state.Period),
		Insurer:              offerInsurer{IIN: state.Insurer.Title},
		ChannelID:            state.Channel,
		PrevGlobalID:         state.PrevGlobalID(),
		AdditionalAttributes: state.Attributes,
		Structure:            offerStructure(state.Structure),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Offer{}, fmt.Errorf("encode offer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/offers", bytes.NewReader(body))
	if err != nil {
		return models.Offer{}, fmt.Errorf("build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return models.Offer{}, fmt.Errorf("offer gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Offer{}, fmt.Errorf("offer gateway returned %s", resp.Status)
	}
	var response offerResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return models.Offer{}, fmt.Errorf("decode offer response: %w", err)
	}
	return models.Offer{
		Premium:    response.FullPremium,
		Cost:       response.ExtraPay,
		Reward:     response.ExtraPayReward,
		Attributes: response.Attributes,
		Conditions: response.InsuranceConditions,
	}, nil
}

// offerPeriod maps a coverage period onto the gateway's period identifiers.
func offerPeriod(period models.Period) string {
	if period.Type == models.PeriodYear && period.Value == 1 {
		return "year"
	}
	return fmt.Sprintf("%s%d", period.Type, period.Value)
}

func offerStructure(structure []models.StructureItem) []offerItem {
	items := make([]offerItem, 0, len(structure))
	for _, item := range structure {
		var attrs any
		switch item.Type {
		case models.StructureDriver:
			attrs = item.Driver
		case models.StructureVehicle:
			attrs = item.Vehicle
		case models.StructureLimit:
			attrs = item.Limit
		}
		items = append(items, offerItem{
			ItemReference: item.ItemReference,
			Type:          string(item.Type),
			Attrs:         attrs,
		})
	}
	return items
}
