// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Thermoquad/jkbms/pkg/jikong"
)

// WebSocketConn carries one fragment per binary message
type WebSocketConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// ReadFragment returns the next binary message. Text messages are skipped.
func (w *WebSocketConn) ReadFragment() ([]byte, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (w *WebSocketConn) Write(p []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (w *WebSocketConn) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.conn.Close()
}

// DialWebSocket opens a WebSocket connection with HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool, timeout time.Duration) (*WebSocketConn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConn{conn: conn}, nil
}

// WebSocket reaches the BMS through a WebSocket bridge. The URL is the
// device address.
type WebSocket struct {
	Username      string
	Password      string
	SkipSSLVerify bool
	Logger        *zap.Logger

	// URL, if set, is the only address Discover reports
	URL string
}

// Discover reports the configured bridge URL
func (w *WebSocket) Discover(ctx context.Context) ([]string, error) {
	if w.URL == "" {
		return nil, nil
	}
	return []string{w.URL}, nil
}

// Connect dials the bridge at address
func (w *WebSocket) Connect(ctx context.Context, address string, timeout time.Duration) (jikong.Link, error) {
	conn, err := DialWebSocket(ctx, address, w.Username, w.Password, w.SkipSSLVerify, timeout)
	if err != nil {
		return nil, err
	}
	return NewStreamLink(conn, w.Logger), nil
}

var _ jikong.Transport = (*WebSocket)(nil)
