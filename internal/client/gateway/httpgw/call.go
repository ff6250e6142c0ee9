package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ecotrack/internal/apperrors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// call sends a JSON request to the identity service. A non-empty token
// is sent as the bearer credential. Failures come back as
// *apperrors.Error carrying the service's code.
func (g *Gateway) call(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpgw: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpgw: build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeNetwork, "could not reach the identity service", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeNetwork, "could not read the identity service response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(apperrors.CodeNetwork, "unexpected identity service response", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body errorBody
	_ = json.Unmarshal(data, &body)

	code := apperrors.ParseCode(body.Code)
	if code == apperrors.CodeUnknown {
		switch {
		case status == http.StatusUnauthorized:
			code = apperrors.CodeNotAuthenticated
		case status >= http.StatusInternalServerError:
			code = apperrors.CodeNetwork
		}
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return apperrors.Wrap(code, msg, fmt.Errorf("httpgw: status %d", status))
}
