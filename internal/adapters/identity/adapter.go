// Package identity is the HTTP client for the person domain, which keeps
// identity records and phone verification state.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"polis/internal/policy/models"
	"polis/internal/policy/requireddata"
	"polis/pkg/platform/sentinel"
)

// Adapter implements the requireddata PersonProvider, PhoneVerifier and
// ClientProvider ports.
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

type personRecord struct {
	Reference     uuid.UUID `json:"reference"`
	IIN           string    `json:"iin"`
	PhoneVerified bool      `json:"phone_verified"`
}

type personsResponse struct {
	Persons []personRecord `json:"persons"`
}

type verificationResponse struct {
	Verified bool `json:"verified"`
}

type clientResponse struct {
	IIN string `json:"iin"`
}

// GetPersons resolves identity records for the given IINs.
func (a *Adapter) GetPersons(ctx context.Context, iins []string) ([]requireddata.Person, error) {
	query := url.Values{"iins": []string{strings.Join(iins, ",")}}
	var response personsResponse
	if err := a.getJSON(ctx, "/v1/persons?"+query.Encode(), &response); err != nil {
		return nil, err
	}
	persons := make([]requireddata.Person, 0, len(response.Persons))
	for _, record := range response.Persons {
		persons = append(persons, requireddata.Person{
			Reference:     record.Reference,
			IIN:           record.IIN,
			PhoneVerified: record.PhoneVerified,
		})
	}
	return persons, nil
}

// IsVerified asks whether the phone registered for the IIN is confirmed with
// the carrier.
func (a *Adapter) IsVerified(ctx context.Context, iin string, carrier models.Carrier) (bool, error) {
	path := fmt.Sprintf("/v1/persons/%s/phone-verification?insurance=%s", iin, carrier)
	var response verificationResponse
	if err := a.getJSON(ctx, path, &response); err != nil {
		return false, err
	}
	return response.Verified, nil
}

// ClientIIN resolves a client record to its IIN.
func (a *Adapter) ClientIIN(ctx context.Context, reference uuid.UUID) (string, error) {
	var response clientResponse
	if err := a.getJSON(ctx, "/v1/clients/"+reference.String(), &response); err != nil {
		return "", err
	}
	return response.IIN, nil
}

func (a *Adapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build person domain request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("person domain request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("person domain returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode person domain response: %w", err)
	}
	return nil
}
