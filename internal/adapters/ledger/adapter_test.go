package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polis/internal/policy/models"
)

func TestCreateAccrueReward(t *testing.T) {
	documentReference := uuid.New()
	var received createRewardRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/policy-rewards/pay", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"document_reference": %q}`, documentReference)
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	state := &models.PolicyState{
		Reference: uuid.New(),
		Carrier:   models.CarrierEurasia,
		Channel:   "partner-web",
		Reward:    decimal.NewFromInt(1000),
	}

	got, err := adapter.CreateAccrueReward(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, documentReference, got)
	assert.Equal(t, state.Reference, received.Reference)
	assert.Equal(t, "EURASIA", received.InsuranceID)
	assert.Equal(t, "partner-web", received.ChannelID)
	assert.True(t, received.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestCreateRetentionReward(t *testing.T) {
	var received createRewardRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/policy-rewards/retention", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprintf(w, `{"document_reference": %q}`, uuid.New())
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	state := &models.PolicyState{
		Reference:       uuid.New(),
		Carrier:         models.CarrierEurasia,
		Channel:         "partner-web",
		Reward:          decimal.NewFromInt(1000),
		RetentionReward: decimal.NullDecimal{Decimal: decimal.RequireFromString("250.00"), Valid: true},
	}

	_, err := adapter.CreateRetentionReward(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "250", received.Amount.String())
}

func TestConfirmAndCancel(t *testing.T) {
	policyReference := uuid.New()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var received rewardReferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, policyReference, received.Reference)
		assert.Equal(t, "EURASIA", received.InsuranceID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	ctx := context.Background()

	require.NoError(t, adapter.ConfirmAccrueReward(ctx, policyReference, models.CarrierEurasia))
	require.NoError(t, adapter.ConfirmRetentionReward(ctx, policyReference, models.CarrierEurasia))
	require.NoError(t, adapter.CancelReward(ctx, policyReference, models.CarrierEurasia))

	assert.Equal(t, []string{
		"/v1/policy-rewards/pay/confirm",
		"/v1/policy-rewards/retention/confirm",
		"/v1/policy-rewards/cancel",
	}, paths)
}

func TestAccountingFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	err := adapter.CancelReward(context.Background(), uuid.New(), models.CarrierEurasia)
	assert.Error(t, err)
}
