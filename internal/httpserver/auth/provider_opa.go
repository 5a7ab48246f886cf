package auth

import (
	"encoding/json"
	"fmt"
)

// OPAProvider wraps requests as {"input": <AuthzRequest>} and unwraps
// responses from {"result": <AuthzDecision>}, matching OPA's data API.
type OPAProvider struct{}

var _ Provider = (*OPAProvider)(nil)

type opaRequest struct {
	Input AuthzRequest `json:"input"`
}

type opaResponse struct {
	Result AuthzDecision `json:"result"`
}

func (p *OPAProvider) Name() string { return "opa" }

func (p *OPAProvider) MarshalRequest(req AuthzRequest) ([]byte, error) {
	return json.Marshal(opaRequest{Input: req})
}

func (p *OPAProvider) UnmarshalDecision(data []byte) (*AuthzDecision, error) {
	var resp opaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode OPA response: %w", err)
	}
	return &resp.Result, nil
}
