package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// ExternalAuthorizer calls an external HTTP policy decision endpoint,
// delegating wire-format translation to a Provider (spec §4.3 allows
// governance decisions to be backed by an external engine like OPA in
// addition to the in-process Governance Engine).
type ExternalAuthorizer struct {
	Endpoint string
	Provider Provider
	Client   *http.Client
}

var _ Authorizer = (*ExternalAuthorizer)(nil)

func (a *ExternalAuthorizer) Check(ctx context.Context, req AuthzRequest) (*AuthzDecision, error) {
	body, err := a.Provider.MarshalRequest(req)
	if err != nil {
		return nil, fmt.Errorf("marshal authz request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create authz request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("authz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authz endpoint returned HTTP %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read authz response: %w", err)
	}

	return a.Provider.UnmarshalDecision(respBody)
}
