package handler

import (
	"context"

	"golang.org/x/oauth2"

	"ecotrack/internal/auth/flow"
	"ecotrack/internal/utils"
)

const stateBytes = 32

func newState() string {
	return utils.RandomString(stateBytes)
}

// newPKCE returns an S256 verifier and its challenge. The verifier stays
// in the flow record; only the challenge goes to the provider.
func newPKCE() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	return verifier, oauth2.S256ChallengeFromVerifier(verifier)
}

// flowForCallback finds the pending flow a provider callback belongs to.
// Unknown, finished, or cross-provider states yield nil.
func (h *Handler) flowForCallback(ctx context.Context, providerName, state string) (*flow.Flow, error) {
	if state == "" {
		return nil, nil
	}
	f, err := h.flows.ByState(ctx, state)
	if err != nil || f == nil {
		return nil, err
	}
	if f.Provider != providerName || f.Terminal() {
		return nil, nil
	}
	return f, nil
}
