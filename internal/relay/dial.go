package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// dialWithRetry 带重试地建立上游连接，重试间隔线性递增。
func dialWithRetry(ctx context.Context, dialer *websocket.Dialer, target string, header http.Header, retries int, backoff time.Duration) (*websocket.Conn, error) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		conn, resp, err := dialer.DialContext(ctx, target, header)
		if err == nil {
			return conn, nil
		}
		if resp != nil {
			lastErr = fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		} else {
			lastErr = fmt.Errorf("websocket dial failed: %w", err)
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(lastErr).Str("component", "relay").Int("attempt", i+1).Msg("upstream dial failed")

		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * backoff):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts, last error: %w", retries, lastErr)
}

// upstreamURL appends the model query parameter.
func upstreamURL(base, model string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
