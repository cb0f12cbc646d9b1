package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PythonProxy forwards analyze requests to the external python analyzer
// service unchanged. The service's response shape matches the in-process
// analyzer's, so the gateway passes it through opaquely.
type PythonProxy struct {
	baseURL string
	http    *http.Client
}

func NewPythonProxy(baseURL string) *PythonProxy {
	return &PythonProxy{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Forward posts the raw analyze request body and returns the upstream
// response body and status code.
func (p *PythonProxy) Forward(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calling python analyzer: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("reading analyzer response: %w", err)
	}
	return out, resp.StatusCode, nil
}
