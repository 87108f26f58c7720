package carrier

import (
	"context"
	"encoding/base64"
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
		ProductCode:      models.ProductOsgpoVts,
		Channel:          "partner-web",
		Insurer:          models.Insurer{Title: "IVANOV IVAN", Reference: uuid.New()},
		Structure: []models.StructureItem{
			{
				ItemReference: uuid.New(),
				Type:          models.StructureDriver,
				Driver:        &models.StructureDriverAttrs{IIN: "900101300123", IsPrivileged: true},
			},
			{
				ItemReference: uuid.New(),
				Type:          models.StructureVehicle,
				Vehicle:       &models.StructureVehicleAttrs{RegistrationNumber: "A123BC01"},
			},
		},
	}
	offer := models.Offer{Premium: 12000, Cost: 2000, Reward: decimal.NewFromInt(1000)}
	policy, err := models.CreatePolicy(lead, offer, models.CarrierEurasia, now)
	require.NoError(t, err)
	return policy.State()
}

func TestSavePolicy(t *testing.T) {
	var received savePolicyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/policies/draft", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"correlation_id": "INS-1", "redirect_url": "https://pay.example/INS-1"}`)
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	state := testState(t)

	info, err := adapter.SavePolicy(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "INS-1", info.InsuranceReference)
	assert.Equal(t, "https://pay.example/INS-1", info.RedirectURL)

	assert.Equal(t, "osgpo-vts", received.ProductID)
	assert.Equal(t, "eurasia", received.Insurance)
	assert.Equal(t, state.ActualInsuranceState.Reference, received.DraftReference)
	assert.Equal(t, "+77001234567", received.Phone)
	assert.Equal(t, state.BeginDate().Format(time.DateOnly), received.StartDate)
	assert.Equal(t, "without_any_pay", received.PaymentType)
	require.Len(t, received.Structure.Drivers, 1)
	assert.Equal(t, "900101300123", received.Structure.Drivers[0].IIN)
	assert.True(t, received.Structure.Drivers[0].IsPrivileged)
	require.NotNil(t, received.Structure.Vehicle)
	assert.Equal(t, "A123BC01", received.Structure.Vehicle.RegistrationNumber)
}

func TestSavePolicyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "client not verified", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	_, err := adapter.SavePolicy(context.Background(), testState(t))
	assert.Error(t, err)
}

func TestGetPolicyPDF(t *testing.T) {
	pdf := []byte("%PDF-1.7 issued policy")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/policies/INS-1/pdf", r.URL.Path)
		assert.Equal(t, "eurasia", r.URL.Query().Get("insurance"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data": %q}`, base64.StdEncoding.EncodeToString(pdf))
	}))
	defer server.Close()

	adapter := New(server.URL, server.Client())
	data, err := adapter.GetPolicyPDF(context.Background(), models.CarrierEurasia, "INS-1")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}
