package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"quizplay/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Feed subscribes to the platform's played-event websocket. It satisfies app.EventFeed.
type Feed struct {
	baseURL string
	dialer  websocket.Dialer
	logger  *slog.Logger
}

func NewFeed(baseURL string, handshakeTimeout time.Duration, logger *slog.Logger) *Feed {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:  logger,
	}
}

// Subscribe opens the websocket for identity. The channel closes when the connection drops
// or cancel is called.
func (f *Feed) Subscribe(ctx context.Context, identity domain.Identity) (<-chan domain.PlayedEvent, func(), error) {
	if !identity.Authenticated() {
		return nil, nil, domain.ErrNotAuthenticated
	}
	endpoint, err := f.endpoint(identity.Token)
	if err != nil {
		return nil, nil, err
	}
	conn, resp, err := f.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("dial feed: %w", sentinelFor(resp.StatusCode))
		}
		return nil, nil, fmt.Errorf("%w: dial feed: %v", domain.ErrNetworkFailure, err)
	}

	events := make(chan domain.PlayedEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-done:
				default:
					f.logger.Warn("feed connection closed", "err", err)
				}
				return
			}
			if msg.Type != "played" {
				continue
			}
			var ev domain.PlayedEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				f.logger.Warn("invalid played event", "err", err)
				continue
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		})
	}
	return events, cancel, nil
}

func (f *Feed) endpoint(token string) (string, error) {
	u, err := url.Parse(f.baseURL + "/ws")
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
