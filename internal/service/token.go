package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fractionalhub.app/concierge/core/config"
)

// TokenService mints short-lived voice transport access tokens from the
// vendor. The vendor API key stays inside the gateway; clients only ever
// see the derived token.
type TokenService interface {
	Mint(ctx context.Context) (string, error)
}

type tokenService struct {
	cfg  config.VoiceConfig
	http *http.Client
}

func NewTokenService(cfg config.VoiceConfig) TokenService {
	return &tokenService{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type vendorTokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (s *tokenService) Mint(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"grant_type": "client_credentials"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(b))
	}

	var out vendorTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty token")
	}
	return out.AccessToken, nil
}
