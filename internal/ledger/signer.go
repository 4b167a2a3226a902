package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dErrors "vaultdao/pkg/domain-errors"
)

// AgentSigner asks an external key-holding agent to sign. The engine never
// sees a private key; a declined request comes back as a signing rejection
// and nothing has been submitted yet.
type AgentSigner struct {
	endpoint string
	http     *http.Client
}

func NewAgentSigner(endpoint string, timeout time.Duration) *AgentSigner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AgentSigner{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type signRequest struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"network_passphrase"`
}

type signResponse struct {
	SignedTransaction string `json:"signed_transaction"`
	Declined          bool   `json:"declined,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

func (s *AgentSigner) Sign(ctx context.Context, unsignedTx []byte, networkPassphrase string) ([]byte, error) {
	body, err := json.Marshal(signRequest{
		Transaction:       base64.StdEncoding.EncodeToString(unsignedTx),
		NetworkPassphrase: networkPassphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeSigningRejected, "signing agent unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeSigningRejected,
			fmt.Sprintf("signing agent returned status %d", resp.StatusCode))
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode sign response: %w", err)
	}
	if sr.Declined {
		reason := sr.Reason
		if reason == "" {
			reason = "signer declined the transaction"
		}
		return nil, dErrors.New(dErrors.CodeSigningRejected, reason)
	}

	signed, err := base64.StdEncoding.DecodeString(sr.SignedTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode signed transaction: %w", err)
	}
	return signed, nil
}
