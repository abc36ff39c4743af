// Package relay forwards a client WebSocket to an upstream real-time voice
// endpoint, frame for frame, in both directions.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aura-companion/gateway/internal/config"
	"github.com/aura-companion/gateway/internal/service/ai"
)

var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Conn is one side of a relay pair. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Relay dials the upstream for every accepted client.
type Relay struct {
	cfg     config.RelayConfig
	dialer  *websocket.Dialer
	backoff time.Duration
}

// New creates a Relay from configuration.
func New(cfg config.RelayConfig) *Relay {
	return &Relay{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		backoff: time.Second,
	}
}

// Serve dials upstream, sends the initialization frame and relays until
// either side ends. The client connection is always closed on return.
func (r *Relay) Serve(ctx context.Context, client Conn) error {
	target, err := upstreamURL(r.cfg.URL, r.cfg.Model)
	if err != nil {
		_ = client.Close()
		return err
	}

	header := http.Header{}
	if r.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")

	upstream, err := dialWithRetry(ctx, r.dialer, target, header, r.cfg.DialRetries, r.backoff)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	init, err := InitFrame(r.cfg.Language)
	if err != nil {
		_ = client.Close()
		_ = upstream.Close()
		return err
	}
	if err := upstream.WriteMessage(websocket.TextMessage, init); err != nil {
		_ = client.Close()
		_ = upstream.Close()
		return fmt.Errorf("send init frame: %w", err)
	}

	return NewPair(client, upstream).Run(ctx)
}

// InitFrame builds the session.update message configuring the upstream
// session language.
func InitFrame(language string) ([]byte, error) {
	instructions := ai.DefaultSystemPrompt
	if language != "" {
		instructions += "\nAlways speak in " + language + "."
	}
	return json.Marshal(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": instructions,
		},
	})
}

// Pair is a client and upstream connection torn down together.
type Pair struct {
	client   Conn
	upstream Conn

	clientOnce   sync.Once
	upstreamOnce sync.Once
}

// NewPair joins two connections.
func NewPair(client, upstream Conn) *Pair {
	return &Pair{client: client, upstream: upstream}
}

// Run forwards frames in both directions. When either direction ends, or
// ctx is cancelled, both connections are closed and Run returns after both
// loops have exited. The returned error is the first cause.
func (p *Pair) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- forward(p.client, p.upstream, "client->upstream") }()
	go func() { errCh <- forward(p.upstream, p.client, "upstream->client") }()

	var first error
	pending := 2
	select {
	case first = <-errCh:
		pending--
	case <-ctx.Done():
		first = ctx.Err()
	}

	p.Close()
	for ; pending > 0; pending-- {
		<-errCh
	}

	if isNormalClose(first) {
		log.Debug().Str("component", "relay").Msg("relay pair closed")
		return nil
	}
	log.Info().Err(first).Str("component", "relay").Msg("relay pair terminated")
	return first
}

// Close closes both connections once.
func (p *Pair) Close() {
	p.clientOnce.Do(func() { _ = p.client.Close() })
	p.upstreamOnce.Do(func() { _ = p.upstream.Close() })
}

func forward(src, dst Conn, direction string) error {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			return fmt.Errorf("%s read: %w", direction, err)
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			return fmt.Errorf("%s write: %w", direction, err)
		}
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
