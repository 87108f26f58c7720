package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
	"polis/internal/policy/service"
	dErrors "polis/pkg/domain-errors"
)

// fakeService records calls and returns programmed results so the tests stay
// about transport mapping, not domain behavior.
type fakeService struct {
	state  *models.PolicyState
	url    string
	report requireddata.Report
	err    error

	createIn   *service.CreatePolicyInput
	updateIn   *service.UpdatePolicyInput
	updateRef  uuid.UUID
	submitRef  uuid.UUID
	callbackIn *service.CallbackInput
}

func (f *fakeService) CreatePolicy(_ context.Context, in service.CreatePolicyInput) (*models.PolicyState, error) {
	f.createIn = &in
	return f.state, f.err
}

func (f *fakeService) UpdatePolicy(_ context.Context, reference uuid.UUID, in service.UpdatePolicyInput) (*models.PolicyState, error) {
	f.updateRef, f.updateIn = reference, &in
	return f.state, f.err
}

func (f *fakeService) SubmitPolicy(_ context.Context, reference uuid.UUID) (*models.PolicyState, error) {
	f.submitRef = reference
	return f.state, f.err
}

func (f *fakeService) UpdateStatusFromCallback(_ context.Context, in service.CallbackInput) (*models.PolicyState, error) {
	f.callbackIn = &in
	return f.state, f.err
}

func (f *fakeService) GetPolicy(context.Context, uuid.UUID) (*models.PolicyState, error) {
	return f.state, f.err
}

func (f *fakeService) GetPDFURL(context.Context, uuid.UUID) (string, error) {
	return f.url, f.err
}

func (f *fakeService) RequiredData(context.Context, uuid.UUID) (requireddata.Report, error) {
	return f.report, f.err
}

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
		Channel:          "web",
		Insurer:          models.Insurer{Title: "IVANOV IVAN", Reference: uuid.New()},
		Structure: []models.StructureItem{
			{ItemReference: uuid.New(), Title: "driver", Type: models.StructureDriver,
				Driver: &models.StructureDriverAttrs{IIN: "900101300123"}},
		},
	}
	offer := models.Offer{Premium: 12000, Cost: 2000, Reward: decimal.NewFromInt(1000)}
	policy, err := models.CreatePolicy(lead, offer, models.CarrierEurasia, now)
	require.NoError(t, err)
	return policy.State()
}

func newRouter(svc *fakeService) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePolicy(t *testing.T) {
	t.Run("creates a draft and returns it", func(t *testing.T) {
		svc := &fakeService{state: testState(t)}
		router := newRouter(svc)

		leadRef := uuid.New()
		rec := doJSON(t, router, http.MethodPost, "/policies",
			`{"lead_reference":"`+leadRef.String()+`","carrier":"eurasia"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, svc.createIn)
		assert.Equal(t, leadRef, svc.createIn.LeadReference)
		assert.Equal(t, "eurasia", svc.createIn.Carrier)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, svc.state.Reference.String(), resp["reference"])
		assert.Equal(t, "DRAFT", resp["status"])
		assert.Equal(t, "eurasia", resp["insurance"])
		assert.Equal(t, "1000", resp["reward"])
	})

	t.Run("malformed body is a validation error", func(t *testing.T) {
		svc := &fakeService{}
		rec := doJSON(t, newRouter(svc), http.MethodPost, "/policies", `{"lead_reference":`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Nil(t, svc.createIn)
	})

	t.Run("domain errors map to status and reason", func(t *testing.T) {
		svc := &fakeService{err: dErrors.NewWithReason(
			dErrors.CodeNotFound, dErrors.ReasonLeadNotFound, "lead not found")}
		rec := doJSON(t, newRouter(svc), http.MethodPost, "/policies",
			`{"lead_reference":"`+uuid.NewString()+`","carrier":"eurasia"}`)

		require.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "not_found", body["error"])
		assert.Equal(t, "LeadNotFoundError", body["reason"])
	})
}

func TestGetPolicy(t *testing.T) {
	t.Run("returns the full state", func(t *testing.T) {
		state := testState(t)
		svc := &fakeService{state: state}
		rec := doJSON(t, newRouter(svc), http.MethodGet, "/policies/"+state.Reference.String(), "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "osgpo-vts", resp["product"])
		assert.Equal(t, "IVANOV IVAN", resp["insurer"].(map[string]any)["title"])
		assert.Len(t, resp["history"], 1)
		assert.NotEmpty(t, resp["begin_date"])
	})

	t.Run("malformed reference never reaches the service", func(t *testing.T) {
		svc := &fakeService{}
		rec := doJSON(t, newRouter(svc), http.MethodGet, "/policies/not-a-uuid", "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown policy maps to 404", func(t *testing.T) {
		svc := &fakeService{err: dErrors.NewWithReason(
			dErrors.CodeNotFound, dErrors.ReasonPolicyNotFound, "policy not found")}
		rec := doJSON(t, newRouter(svc), http.MethodGet, "/policies/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdatePolicy(t *testing.T) {
	t.Run("parses partial updates", func(t *testing.T) {
		state := testState(t)
		svc := &fakeService{state: state}
		rec := doJSON(t, newRouter(svc), http.MethodPatch, "/policies/"+state.Reference.String(),
			`{"begin_date":"2024-04-01","email":"user@example.com","payment_type":1}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.updateIn)
		assert.Equal(t, state.Reference, svc.updateRef)
		require.NotNil(t, svc.updateIn.BeginDate)
		assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *svc.updateIn.BeginDate)
		require.NotNil(t, svc.updateIn.Email)
		assert.Equal(t, "user@example.com", *svc.updateIn.Email)
		require.NotNil(t, svc.updateIn.PaymentType)
		assert.Equal(t, models.PaymentWithAnyPay, *svc.updateIn.PaymentType)
	})

	t.Run("rejects a malformed date before the service", func(t *testing.T) {
		svc := &fakeService{}
		rec := doJSON(t, newRouter(svc), http.MethodPatch, "/policies/"+uuid.NewString(),
			`{"begin_date":"01.04.2024"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Nil(t, svc.updateIn)
	})

	t.Run("rejects an unknown payment type", func(t *testing.T) {
		svc := &fakeService{}
		rec := doJSON(t, newRouter(svc), http.MethodPatch, "/policies/"+uuid.NewString(),
			`{"payment_type":7}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Nil(t, svc.updateIn)
	})
}

func TestSubmitPolicy(t *testing.T) {
	state := testState(t)
	svc := &fakeService{state: state}
	rec := doJSON(t, newRouter(svc), http.MethodPost, "/policies/"+state.Reference.String()+"/submit", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, state.Reference, svc.submitRef)
}

func TestCarrierCallback(t *testing.T) {
	t.Run("maps the carrier envelope to the domain input", func(t *testing.T) {
		state := testState(t)
		svc := &fakeService{state: state}
		rec := doJSON(t, newRouter(svc), http.MethodPost, "/callbacks/carrier",
			`{"insurance_reference":"INS-1","global_id":"GID-1","event_type":"PAYED",`+
				`"event_time":"2024-03-15T11:00:00Z","attributes":{"tariff":"standard"}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.callbackIn)
		assert.Equal(t, "INS-1", svc.callbackIn.InsuranceReference)
		assert.Equal(t, "GID-1", svc.callbackIn.GlobalID)
		assert.Equal(t, "PAYED", svc.callbackIn.EventType)
		assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), svc.callbackIn.EventTime)
		assert.Equal(t, map[string]any{"tariff": "standard"}, svc.callbackIn.Attributes)

		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, state.Reference.String(), resp["reference"])
	})

	t.Run("unknown event type maps to 422", func(t *testing.T) {
		svc := &fakeService{err: dErrors.Newf(dErrors.CodeValidation, "unknown callback event type %q", "EXPLODED")}
		rec := doJSON(t, newRouter(svc), http.MethodPost, "/callbacks/carrier",
			`{"insurance_reference":"INS-1","event_type":"EXPLODED"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestGetPDFURL(t *testing.T) {
	svc := &fakeService{url: "https://storage.local/policies/abc.pdf"}
	rec := doJSON(t, newRouter(svc), http.MethodGet, "/policies/"+uuid.NewString()+"/pdf", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "https://storage.local/policies/abc.pdf", resp["url"])
}

func TestRequiredData(t *testing.T) {
	driverRef := uuid.New()
	svc := &fakeService{report: requireddata.Report{
		Drivers: []requireddata.RequiredDriver{{Reference: driverRef}},
	}}
	rec := doJSON(t, newRouter(svc), http.MethodGet, "/policies/"+uuid.NewString()+"/required-data", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp requireddata.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Drivers, 1)
	assert.Equal(t, driverRef, resp.Drivers[0].Reference)
}
