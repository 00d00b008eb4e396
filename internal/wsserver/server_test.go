/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wsserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/webtrail/webtrail/internal/authjwt"
	"github.com/webtrail/webtrail/internal/fifo"
)

// TestAcceptKeyKnownVector is §8's "WS accept" testable property.
func TestAcceptKeyKnownVector(t *testing.T) {
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHandshakeAndBroadcast(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	conn := dial(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, s.ClientCount())

	s.Broadcast(fifo.Packet{Listener: fifo.Broadcast, Opcode: fifo.OpcodeText, Payload: []byte(`{"hello":"world"}`)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"world"}`, string(data))
}

func TestJWTGateRejectsBadToken(t *testing.T) {
	iss := authjwt.NewIssuer("test-host", "secret", time.Minute)
	var gotAuthFailure bool
	_, ts := newTestServer(t, Options{Auth: iss})
	conn := dial(t, ts)

	req, _ := json.Marshal(map[string]string{"action": "validate_token", "token": "not-a-real-token"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if ce, ok := err.(*websocket.CloseError); ok {
		gotAuthFailure = ce.Code == websocket.CloseInternalServerErr
	} else {
		gotAuthFailure = err != nil
	}
	require.True(t, gotAuthFailure, "expected connection to close on bad token, got err=%v", err)
}

func TestJWTGateAcceptsGoodToken(t *testing.T) {
	iss := authjwt.NewIssuer("test-host", "secret", time.Minute)
	tok, err := iss.Issue("client-1")
	require.NoError(t, err)

	var forwarded []byte
	done := make(chan struct{}, 1)
	s, ts := newTestServer(t, Options{
		Auth: iss,
		OnClientMessage: func(id uint32, payload []byte) {
			forwarded = payload
			done <- struct{}{}
		},
	})
	conn := dial(t, ts)

	req, _ := json.Marshal(map[string]string{"action": "validate_token", "token": tok})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message never forwarded")
	}
	require.Equal(t, "ping", string(forwarded))
}

func TestShutdownClosesClients(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	conn := dial(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ce *websocket.CloseError
	if errIs(err, &ce) {
		require.Equal(t, websocket.CloseGoingAway, ce.Code)
	}
}

func errIs(err error, target **websocket.CloseError) bool {
	ce, ok := err.(*websocket.CloseError)
	if ok {
		*target = ce
	}
	return ok
}
