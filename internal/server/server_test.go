/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatquest/internal/session"
	"chatquest/internal/storage"
)

const gate = `---
dialog:
  id: gate
  title: Gate
  participants:
    - guard
    - hero
characters:
  guard:
    name: Guard
    color: "#ff0000"
  hero:
    name: Hero
---
=== start ===
~ speaker = guard
Halt!
+ Let me in -> in
+ [Run] -> END

=== in ===
Fine.
-> END
`

const snore = `---
dialog:
  id: snore
  participants: [guard, hero]
---
=== start ===
Zzz...
-> start
`

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *session.Library) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "cq.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	lib := session.NewLibrary(st)
	_, err = lib.Import(context.Background(), gate, false)
	require.NoError(t, err)
	srv := httptest.NewServer(New(lib, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, lib
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(inboundMessage{Type: typ, Payload: raw}))
}

func TestHealthAndScenarios(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/scenarios")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []storage.Scenario
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "gate", list[0].ID)

	resp2, err := http.Get(srv.URL + "/api/scenarios?q=nothing")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var empty []storage.Scenario
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&empty))
	assert.Empty(t, empty)
}

func TestPlayOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "?scenario=gate")

	hist := read(t, conn)
	assert.Equal(t, MsgHistory, hist.Type)
	assert.Equal(t, "Gate", hist.Title)
	require.NotNil(t, hist.AllowRestart)
	assert.True(t, *hist.AllowRestart)
	assert.Empty(t, hist.Lines)

	turn := read(t, conn)
	assert.Equal(t, MsgTurn, turn.Type)
	require.Len(t, turn.Lines, 1)
	assert.Equal(t, "Guard", turn.Lines[0].Name)
	assert.Equal(t, int64(300), turn.Lines[0].DelayMs)
	require.Len(t, turn.Choices, 2)
	assert.False(t, turn.Partial)
	require.NotNil(t, turn.CanUndo)
	assert.False(t, *turn.CanUndo)

	send(t, conn, CmdChoose, choosePayload{Index: 0})
	turn = read(t, conn)
	require.Len(t, turn.Lines, 2)
	assert.True(t, turn.Lines[0].IsPlayer)
	assert.Equal(t, "Let me in", turn.Lines[0].Text)
	assert.True(t, turn.Ended)
	assert.True(t, *turn.CanUndo)
	assert.False(t, *turn.CanRedo)

	send(t, conn, CmdUndo, nil)
	hist = read(t, conn)
	assert.Equal(t, MsgHistory, hist.Type)
	assert.Len(t, hist.Lines, 1)
	turn = read(t, conn)
	assert.Len(t, turn.Choices, 2)
	assert.Empty(t, turn.Lines)
	assert.False(t, *turn.CanUndo)
	assert.True(t, *turn.CanRedo)

	send(t, conn, CmdRedo, nil)
	hist = read(t, conn)
	assert.Len(t, hist.Lines, 3)
	turn = read(t, conn)
	assert.True(t, turn.Ended)

	send(t, conn, CmdChoose, choosePayload{Index: 9})
	assert.Equal(t, MsgError, read(t, conn).Type)

	send(t, conn, CmdRestart, nil)
	hist = read(t, conn)
	assert.Empty(t, hist.Lines)
	turn = read(t, conn)
	assert.Len(t, turn.Lines, 1)
	assert.Len(t, turn.Choices, 2)

	send(t, conn, "dance", nil)
	errMsg := read(t, conn)
	assert.Equal(t, MsgError, errMsg.Type)
	assert.Contains(t, errMsg.Error, "dance")
}

func TestReconnectResumes(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "")
	read(t, conn)
	read(t, conn)
	// the reply shows the handler is past recording the first turn
	send(t, conn, "ping", nil)
	assert.Equal(t, MsgError, read(t, conn).Type)
	_ = conn.Close()

	conn = dial(t, srv, "?scenario=gate")
	hist := read(t, conn)
	assert.Len(t, hist.Lines, 1, "history restored from saved progress")
	turn := read(t, conn)
	assert.Empty(t, turn.Lines)
	assert.Len(t, turn.Choices, 2)
}

func TestEndlessTextArrivesInPartialTurns(t *testing.T) {
	srv, lib := newTestServer(t)
	_, err := lib.Import(context.Background(), snore, false)
	require.NoError(t, err)
	conn := dial(t, srv, "?scenario=snore")
	read(t, conn)

	turn := read(t, conn)
	assert.True(t, turn.Partial)
	assert.NotEmpty(t, turn.Lines)
	assert.Empty(t, turn.Choices)

	send(t, conn, CmdAdvance, nil)
	next := read(t, conn)
	assert.True(t, next.Partial)
	assert.Len(t, next.Lines, len(turn.Lines))
}

func TestOriginCheck(t *testing.T) {
	srv, _ := newTestServer(t, WithAllowedOrigins([]string{"https://play.example.org"}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?scenario=gate"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{srv.URL, "https://play.example.org"} {
		conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		assert.Equal(t, MsgHistory, read(t, conn).Type)
		_ = conn.Close()
	}
}

func TestUnknownScenario(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?scenario=missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	_, lib := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(lib).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
