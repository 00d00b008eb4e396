/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wsserver is the live-dashboard WebSocket server (§4.5). It
// layers the goaccess-specific behavior the source hand-rolls — per-client
// throttling, the JWT auth gate, close-code mapping and FIFO bridging —
// over github.com/gorilla/websocket, which already implements RFC 6455
// wire framing (masking enforcement, control-frame size limits); UTF-8
// validation of text payloads is done in readPump. Grounded on the teacher's
// client/websocketRouter package for the origin-check and per-connection
// goroutine-pump shape, generalized from Gravwell's subprotocol routing to
// goaccess's single broadcast channel plus inline JSON actions.
package wsserver

import (
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/webtrail/webtrail/internal/applog"
	"github.com/webtrail/webtrail/internal/authjwt"
)

// State is a bitmask mirroring §3's WSClient "status flags
// (READING|SENDING|THROTTLING|CLOSE|ERR)". Go's goroutine-per-connection
// model makes most of these implicit (there is always exactly one
// in-flight read, enforced by gorilla), so the bits that matter in
// practice are Throttling, Closing and Err; Reading/Sending are tracked
// for parity with §3 and surfaced for diagnostics.
type State uint32

const (
	StateReading State = 1 << iota
	StateSending
	StateThrottling
	StateClosing
	StateErr
)

// Defaults from §4.5/§6.
const (
	// DefaultThrottleThreshold is WS_THROTTLE_THLD: once a client's queued
	// write bytes exceed this, further broadcasts to it are dropped until
	// the queue drains.
	DefaultThrottleThreshold = 2 << 20 // 2 MiB

	// DefaultMaxFrameSize is WS_MAX_FRM_SZ.
	DefaultMaxFrameSize = 1 << 20 // 1 MiB

	defaultSendQueueDepth = 64
	handshakeReadTimeout  = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Addr is the "host:port" to listen on (--ws-url, §6).
	Addr string
	// Origin, when non-empty, is compared against the handshake's Origin
	// header (§4.5).
	Origin string
	// TLSCertFile/TLSKeyFile enable TLS when both are set (--ssl-cert/
	// --ssl-key, §6).
	TLSCertFile, TLSKeyFile string
	// Auth, when non-nil, gates client frames behind JWT validation
	// (§4.5 "JWT authentication"). Nil disables the gate entirely.
	Auth *authjwt.Issuer
	// ThrottleThreshold overrides DefaultThrottleThreshold when > 0.
	ThrottleThreshold int
	// MaxFrameSize overrides DefaultMaxFrameSize when > 0.
	MaxFrameSize int64
	// OnClientMessage is invoked for every authenticated (or, with no Auth
	// configured, every) text frame a client sends that isn't itself a
	// validate_token action — the inbound FIFO path (§4.5).
	OnClientMessage func(clientID uint32, payload []byte)

	Log *applog.Logger
}

// client is one connected WebSocket peer (§3 WSClient).
type client struct {
	id       uint32
	conn     *websocket.Conn
	remoteIP string
	headers  http.Header

	send      chan []byte
	queued    int64 // bytes currently buffered in send, for the throttle check
	state     atomic.Uint32
	closeOnce sync.Once

	authenticated atomic.Bool
	lastJWT       atomic.Value // string
}

func (c *client) setState(s State) {
	for {
		old := c.state.Load()
		if c.state.CompareAndSwap(old, old|uint32(s)) {
			return
		}
	}
}

func (c *client) clearState(s State) {
	for {
		old := c.state.Load()
		if c.state.CompareAndSwap(old, old&^uint32(s)) {
			return
		}
	}
}

func (c *client) hasState(s State) bool {
	return State(c.state.Load())&s != 0
}

func tlsConfigFor(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
