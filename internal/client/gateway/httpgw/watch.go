package httpgw

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"ecotrack/internal/auth"
	"ecotrack/internal/logger"
)

const identityEvent = "identity"

var errStreamRejected = errors.New("httpgw: event stream rejected the session")

// watch follows the identity event stream of session generation gen
// until ctx is cancelled or the service ends the session. Dropped
// connections are retried with exponential backoff.
func (g *Gateway) watch(ctx context.Context, gen uint64, token string) {
	defer g.wg.Done()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.reconnect
	b.MaxInterval = g.maxReconnect
	b.Reset()

	for {
		ended, err := g.stream(ctx, gen, token, b.Reset)
		if ctx.Err() != nil || ended {
			return
		}
		if errors.Is(err, errStreamRejected) {
			logger.Info("identity stream rejected the session", nil)
			g.applyRemote(gen, nil)
			return
		}

		wait := b.NextBackOff()
		logger.Warn("identity stream dropped", map[string]any{
			"error": errString(err),
			"retry": wait.String(),
		})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream reads one connection of the event stream. ended reports that
// the service signalled the end of the session.
func (g *Gateway) stream(ctx context.Context, gen uint64, token string, connected func()) (ended bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/auth/events", nil)
	if err != nil {
		return false, fmt.Errorf("httpgw: build events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.streamClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return false, errStreamRejected
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("httpgw: events status %d", resp.StatusCode)
	}
	connected()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 4096), maxBodyBytes)

	var (
		event string
		data  []string
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 && (event == "" || event == identityEvent) {
				identity, err := decodeIdentity(strings.Join(data, "\n"))
				if err != nil {
					logger.Warn("skipping malformed identity event", map[string]any{"error": err.Error()})
				} else {
					g.applyRemote(gen, identity)
					if identity == nil {
						return true, nil
					}
				}
			}
			event, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return false, err
	}
	return false, io.ErrUnexpectedEOF
}

// decodeIdentity reads one event payload. "null" means signed out.
func decodeIdentity(payload string) (*auth.Identity, error) {
	var identity *auth.Identity
	if err := json.Unmarshal([]byte(payload), &identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
