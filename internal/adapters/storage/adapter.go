// Package storage keeps issued policy documents in an S3-compatible bucket
// exposed over plain HTTP.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Documents stay publicly readable for a year plus a grace day.
const objectTTL = 367 * 24 * time.Hour

// Adapter implements the policy service's ObjectStore port.
type Adapter struct {
	bucketURL  string
	publicBase string
	client     *http.Client
}

// New creates a store writing to bucketURL and handing out links under
// publicBase.
func New(bucketURL, publicBase string, client *http.Client) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{bucketURL: bucketURL, publicBase: publicBase, client: client}
}

func objectKey(policyReference uuid.UUID) string {
	return fmt.Sprintf("policies/%s.pdf", policyReference)
}

// Upload stores the document and verifies it landed.
func (a *Adapter) Upload(ctx context.Context, policyReference uuid.UUID, data []byte) error {
	key := objectKey(policyReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.bucketURL+"/"+key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("x-amz-acl", "public-read")
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Expires", time.Now().Add(objectTTL).UTC().Format(http.TimeFormat))

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload policy document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storage returned %s", resp.Status)
	}

	exists, err := a.exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("policy document %s missing after upload", key)
	}
	return nil
}

// URL returns the public link for a stored document.
func (a *Adapter) URL(_ context.Context, policyReference uuid.UUID) (string, error) {
	return a.publicBase + "/" + objectKey(policyReference), nil
}

func (a *Adapter) exists(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.bucketURL+"/"+key, nil)
	if err != nil {
		return false, fmt.Errorf("build head request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("check policy document: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
