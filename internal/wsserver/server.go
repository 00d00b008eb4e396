/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wsserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/webtrail/webtrail/internal/applog"
	"github.com/webtrail/webtrail/internal/fifo"
)

func deadlineNow() time.Time {
	return time.Now().Add(5 * time.Second)
}

// clientAction is the inbound message envelope recognized inline by the
// server (§4.5 "recognized action: validate_token"); anything else is
// forwarded verbatim to Options.OnClientMessage, the inbound-FIFO path to
// the core.
type clientAction struct {
	Action string `json:"action"`
	Token  string `json:"token"`
}

// Server is the real-time dashboard's WebSocket endpoint (§4.5 component
// G). One Server owns the listener, the upgrader and every connected
// client's send queue; Broadcast is the only entry point the rest of the
// core (the holder/broadcaster pipeline) needs.
type Server struct {
	opts Options
	log  *applog.Logger

	httpSrv  *http.Server
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uint32]*client
	nextID  uint32

	closing atomic.Bool
}

// New builds a Server from opts. Call Serve to start accepting
// connections and Shutdown to stop.
func New(opts Options) (*Server, error) {
	if opts.ThrottleThreshold <= 0 {
		opts.ThrottleThreshold = DefaultThrottleThreshold
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	log := opts.Log
	if log == nil {
		log = applog.NewDiscard()
	}

	s := &Server{
		opts:    opts,
		log:     log,
		clients: make(map[uint32]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, opts.Origin)
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: opts.Addr, Handler: mux}
	return s, nil
}

// Serve listens and blocks until Shutdown is called (or the listener
// fails). TLS is used when both cert/key files are configured (§6
// --ssl-cert/--ssl-key).
func (s *Server) Serve() error {
	tlsCfg, err := tlsConfigFor(s.opts.TLSCertFile, s.opts.TLSKeyFile)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		s.httpSrv.TLSConfig = tlsCfg
		ln = tls.NewListener(ln, tlsCfg)
	}
	err = s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes every client with CloseGoingAway (§4.5 "the loop is
// broken... on break, all clients receive a CLOSE") and stops the
// listener. This is the Go realization of the source's self-pipe break.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.closeClient(c, websocket.CloseGoingAway, "server shutting down")
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", applog.KVErr(err))
		return
	}
	conn.SetReadLimit(s.opts.MaxFrameSize)

	id := atomic.AddUint32(&s.nextID, 1)
	c := &client{
		id:       id,
		conn:     conn,
		remoteIP: remoteIP(r),
		headers:  r.Header.Clone(),
		send:     make(chan []byte, defaultSendQueueDepth),
	}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	s.log.Info("ws client connected", applog.Field("id", id), applog.Field("remote", c.remoteIP))

	go s.writePump(c)
	s.readPump(c)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// readPump owns the single in-flight inbound frame invariant (§3): one
// goroutine per client blocked in ReadMessage.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)
	c.setState(StateReading)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !utf8.Valid(data) {
			s.closeClient(c, websocket.CloseInvalidFramePayloadData, "invalid UTF-8")
			return
		}
		s.handleClientText(c, data)
	}
}

func (s *Server) handleClientText(c *client, data []byte) {
	var act clientAction
	if err := json.Unmarshal(data, &act); err == nil && act.Action == "validate_token" {
		s.handleValidateToken(c, act.Token)
		return
	}
	// §4.5: "the server only forwards frames from authenticated clients"
	// once a secret is configured.
	if s.opts.Auth != nil && !c.authenticated.Load() {
		return
	}
	if s.opts.OnClientMessage != nil {
		s.opts.OnClientMessage(c.id, data)
	}
}

// handleValidateToken implements §4.5's JWT gate. Verification runs
// in-process (the Server owns the Issuer) rather than round-tripping the
// request across the FIFO to a separate "core" goroutine: both halves of
// the source's two-thread split live in one Go process here, so the extra
// hop would add latency without adding isolation. The inbound/outbound
// FIFO still carries every other client message and every broadcast, per
// §4.5.
func (s *Server) handleValidateToken(c *client, token string) {
	if s.opts.Auth == nil {
		c.authenticated.Store(true)
		return
	}
	claims, err := s.opts.Auth.Verify(token)
	if err != nil {
		s.log.Warn("jwt validation failed", applog.Field("id", c.id), applog.KVErr(err))
		s.closeClient(c, websocket.CloseInternalServerErr, "invalid token")
		return
	}
	c.lastJWT.Store(token)
	c.authenticated.Store(true)
	s.log.Info("ws client authenticated", applog.Field("id", c.id), applog.Field("sub", claims.Subject))
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		atomic.AddInt64(&c.queued, -int64(len(msg)))
		c.setState(StateSending)
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.clearState(StateSending)
			return
		}
		c.clearState(StateSending)
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.closeOnce.Do(func() { close(c.send) })
}

func (s *Server) closeClient(c *client, code int, reason string) {
	c.setState(StateClosing)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadlineNow())
	_ = c.conn.Close()
}

// Broadcast fans a FIFO packet out to one client (pkt.Listener) or every
// connected client (pkt.Listener == fifo.Broadcast), applying the
// §4.5 per-client throttle: a client whose queue already exceeds
// ThrottleThreshold is marked StateThrottling and the broadcast is
// silently dropped for it until the queue drains.
func (s *Server) Broadcast(pkt fifo.Packet) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pkt.Listener != fifo.Broadcast {
		if c, ok := s.clients[pkt.Listener]; ok {
			s.send(c, pkt.Payload)
		}
		return
	}
	for _, c := range s.clients {
		s.send(c, pkt.Payload)
	}
}

func (s *Server) send(c *client, payload []byte) {
	if int(atomic.LoadInt64(&c.queued)) > s.opts.ThrottleThreshold {
		c.setState(StateThrottling)
		return
	}
	c.clearState(StateThrottling)

	select {
	case c.send <- payload:
		atomic.AddInt64(&c.queued, int64(len(payload)))
	default:
		// send buffer (channel depth) is full: the client is falling
		// behind faster than the queued-bytes check alone would catch.
		c.setState(StateThrottling)
	}
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
