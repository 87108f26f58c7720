package offer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polis/internal/policy/models"
)

func testState(t *testing.T) *models.PolicyState {
	t.Helper()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	lead := models.Lead{
		Reference:        uuid.New(),
		IsFreeze:         true,
		Phone:            "+77001234567",
		CreatorReference: uuid.New(),
		Period:           models.Period{Type: models.PeriodYear, Value: 1},
		PrevPolicy:       &models.PrevPolicy{PrevGlobalID: "GID-OLD", Carrier: models.CarrierEurasia},
		ProductCode:      models.ProductOsgpoVts,
		Channel:          "partner-web",
		Insurer:          models.Insurer{Title: "IVANOV IVAN", Reference: uuid.New()},
		Structure: []models.StructureItem{
			{
				ItemReference: uuid.New(),
				Type:          models.StructureDriver,
				Driver:        &models.StructureDriverAttrs{IIN: "900101300123"},
			},
			{
				ItemReference: uuid.New(),
				Type:          models.StructureVehicle,
				Vehicle:       &models.StructureVehicleAttrs{RegistrationNumber: "A123BC01"},
			},
		},
	}
	offer := models.Offer{
		Premium:    12000,
		Cost:       2000,
		Reward:     decimal.NewFromInt(1000),
		Attributes: map[string]any{"tariff": "standard"},
	}
	policy, err := models.CreatePolicy(lead, offer, models.CarrierEurasia, now)
	require.NoError(t, err)
	return policy.State()
}

func TestGetOffer(t *testing.T) {
	state := testState(t)

	var received offerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/offers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"full_premium": 13000,
			"extra_pay": 1000,
			"extra_pay_reward": "450.50",
			"attributes": {"tariff": "upgraded"},
			"insurance_conditions": ["no-discount"]
		}`)
	}))
	defer server.Close()

	adapter := New(server.URL, nil)
	offer, err := adapter.GetOffer(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "eurasia", received.Insurance)
	assert.Equal(t, "osgpo-vts", received.ProductID)
	assert.Equal(t, "year", received.Period)
	assert.Equal(t, "IVANOV IVAN", received.Insurer.IIN)
	assert.Equal(t, "partner-web", received.ChannelID)
	assert.Equal(t, "GID-OLD", received.PrevGlobalID)
	assert.Equal(t, map[string]any{"tariff": "standard"}, received.AdditionalAttributes)
	require.Len(t, received.Structure, 2)
	assert.Equal(t, string(models.StructureDriver), received.Structure[0].Type)
	assert.Equal(t, string(models.StructureVehicle), received.Structure[1].Type)

	assert.Equal(t, 13000, offer.Premium)
	assert.Equal(t, 1000, offer.Cost)
	assert.Equal(t, "450.5", offer.Reward.String())
	assert.Equal(t, map[string]any{"tariff": "upgraded"}, offer.Attributes)
	assert.Equal(t, []string{"no-discount"}, offer.Conditions)
}

func TestGetOfferGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := New(server.URL, nil)
	_, err := adapter.GetOffer(context.Background(), testState(t))
	require.ErrorContains(t, err, "offer gateway returned")
}

func TestOfferPeriod(t *testing.T) {
	assert.Equal(t, "year", offerPeriod(models.Period{Type: models.PeriodYear, Value: 1}))
	assert.Equal(t, "month6", offerPeriod(models.Period{Type: models.PeriodMonth, Value: 6}))
	assert.Equal(t, "day15", offerPeriod(models.Period{Type: models.PeriodDay, Value: 15}))
}
