// Package lead is the HTTP client for the lead gateway: it resolves sales
// leads and the carrier offers quoted for them.
package lead

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polis/internal/policy/models"
	"polis/pkg/platform/sentinel"
)

// Adapter implements the policy service's LeadProvider port.
type Adapter struct {
	baseURL string
	client  *http.Client
}

// New creates a lead gateway client rooted at baseURL.
func New(baseURL string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{baseURL: baseURL, client: client}
}

type leadResponse struct {
	Reference uuid.UUID `json:"reference"`
	IsFreeze  bool      `json:"is_freeze"`
	Phone     string    `json:"phone"`
	Creator   struct {
		Reference uuid.UUID `json:"reference"`
	} `json:"creator"`
	Period     models.Period `json:"period"`
	PrevPolicy *struct {
		GlobalID  string `json:"global_id"`
		Insurance struct {
			Code string `json:"code"`
		} `json:"insurance"`
	} `json:"prev_policy"`
	Product struct {
		Code string `json:"code"`
	} `json:"product"`
	Channel struct {
		Code string `json:"code"`
	} `json:"channel"`
	Insurer   models.Insurer `json:"insurer"`
	Structure []struct {
		ItemReference uuid.UUID       `json:"item_reference"`
		Title         string          `json:"title"`
		Type          string          `json:"type"`
		Attrs         json.RawMessage `json:"attrs"`
	} `json:"structure"`
}

type offerResponse struct {
	FullPremium         int             `json:"full_premium"`
	ExtraPay            int             `json:"extra_pay"`
	ExtraPayReward      decimal.Decimal `json:"extra_pay_reward"`
	Attributes          map[string]any  `json:"attributes"`
	InsuranceConditions []struct {
		Code string `json:"code"`
	} `json:"conditions"`
}

// GetLead fetches a lead by reference. A missing lead comes back as
// sentinel.ErrNotFound.
func (a *Adapter) GetLead(ctx context.Context, leadReference uuid.UUID) (models.Lead, error) {
	url := fmt.Sprintf("%s/v1/leads/%s", a.baseURL, leadReference)
	var response leadResponse
	if err := a.getJSON(ctx, url, &response); err != nil {
		return models.Lead{}, err
	}
	return a.toLead(response)
}

// GetOffer fetches the offer the given carrier quoted for a lead.
func (a *Adapter) GetOffer(ctx context.Context, carrier models.Carrier, leadReference uuid.UUID) (models.Offer, error) {
	url := fmt.Sprintf("%s/v1/leads/%s/offers/%s", a.baseURL, leadReference, carrier)
	var response offerResponse
	if err := a.getJSON(ctx, url, &response); err != nil {
		return models.Offer{}, err
	}
	return toOffer(response), nil
}

func (a *Adapter) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build lead gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("lead gateway request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("lead gateway returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode lead gateway response: %w", err)
	}
	return nil
}

func (a *Adapter) toLead(response leadResponse) (models.Lead, error) {
	product, err := models.ParseProduct(response.Product.Code)
	if err != nil {
		return models.Lead{}, err
	}

	var prevPolicy *models.PrevPolicy
	if response.PrevPolicy != nil {
		carrier, err := models.ParseCarrier(response.PrevPolicy.Insurance.Code)
		if err != nil {
			return models.Lead{}, err
		}
		prevPolicy = &models.PrevPolicy{
			PrevGlobalID: response.PrevPolicy.GlobalID,
			Carrier:      carrier,
		}
	}

	structure := make([]models.StructureItem, 0, len(response.Structure))
	for _, raw := range response.Structure {
		item, err := toStructureItem(raw.ItemReference, raw.Title, raw.Type, raw.Attrs)
		if err != nil {
			return models.Lead{}, err
		}
		structure = append(structure, item)
	}

	return models.Lead{
		Reference:        response.Reference,
		IsFreeze:         response.IsFreeze,
		Phone:            response.Phone,
		CreatorReference: response.Creator.Reference,
		Period:           response.Period,
		PrevPolicy:       prevPolicy,
		ProductCode:      product,
		Channel:          response.Channel.Code,
		Insurer:          response.Insurer,
		Structure:        structure,
	}, nil
}

func toStructureItem(reference uuid.UUID, title, itemType string, attrs json.RawMessage) (models.StructureItem, error) {
	item := models.StructureItem{
		ItemReference: reference,
		Title:         title,
		Type:          models.StructureItemType(itemType),
	}
	switch item.Type {
	case models.StructureDriver:
		item.Driver = &models.StructureDriverAttrs{}
		if err := json.Unmarshal(attrs, item.Driver); err != nil {
			return models.StructureItem{}, fmt.Errorf("decode driver attrs: %w", err)
		}
	case models.StructureVehicle:
		item.Vehicle = &models.StructureVehicleAttrs{}
		if err := json.Unmarshal(attrs, item.Vehicle); err != nil {
			return models.StructureItem{}, fmt.Errorf("decode vehicle attrs: %w", err)
		}
	case models.StructureLimit:
		item.Limit = &models.StructureLimitAttrs{}
		if err := json.Unmarshal(attrs, item.Limit); err != nil {
			return models.StructureItem{}, fmt.Errorf("decode limit attrs: %w", err)
		}
	default:
		return models.StructureItem{}, fmt.Errorf("unknown structure item type %q", itemType)
	}
	return item, nil
}

func toOffer(response offerResponse) models.Offer {
	conditions := make([]string, 0, len(response.InsuranceConditions))
	for _, condition := range response.InsuranceConditions {
		conditions = append(conditions, condition.Code)
	}
	return models.Offer{
		Premium:    response.FullPremium,
		Cost:       response.ExtraPay,
		Reward:     response.ExtraPayReward,
		Attributes: response.Attributes,
		Conditions: conditions,
	}
}
