package auth

import "fmt"

// Provider translates between aeterna's engine-agnostic AuthzRequest/
// AuthzDecision and an external policy engine's wire format.
type Provider interface {
	// Name returns the provider identifier (e.g. "opa").
	Name() string
	MarshalRequest(req AuthzRequest) ([]byte, error)
	UnmarshalDecision(data []byte) (*AuthzDecision, error)
}

// ProviderByName returns a Provider for the given name. An empty name
// defaults to OPA.
func ProviderByName(name string) (Provider, error) {
	switch name {
	case "opa", "":
		return &OPAProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown authz provider: %q (supported: opa)", name)
	}
}
