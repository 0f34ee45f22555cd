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
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	applog "chatquest/internal/log"
	"chatquest/internal/session"
)

const maxInboundBytes = 4096

// Message types.
const (
	MsgHistory = "history"
	MsgTurn    = "turn"
	MsgError   = "error"

	CmdChoose  = "choose"
	CmdAdvance = "advance"
	CmdRestart = "restart"
	CmdUndo    = "undo"
	CmdRedo    = "redo"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type choosePayload struct {
	Index int `json:"index"`
}

type lineDTO struct {
	Speaker  string `json:"speaker"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Color    string `json:"color,omitempty"`
	Text     string `json:"text"`
	IsPlayer bool   `json:"isPlayer"`
	DelayMs  int64  `json:"delayMs,omitempty"`
}

type choiceDTO struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// outbound is the single envelope for server messages; unused fields are omitted.
type outbound struct {
	Type         string      `json:"type"`
	Scenario     string      `json:"scenario,omitempty"`
	Title        string      `json:"title,omitempty"`
	AllowRestart *bool       `json:"allowRestart,omitempty"`
	Lines        []lineDTO   `json:"lines,omitempty"`
	Choices      []choiceDTO `json:"choices,omitempty"`
	Ended        bool        `json:"ended,omitempty"`
	Partial      bool        `json:"partial,omitempty"`
	CanUndo      *bool       `json:"canUndo,omitempty"`
	CanRedo      *bool       `json:"canRedo,omitempty"`
	Error        string      `json:"error,omitempty"`

	shown int
}

func toLines(in []session.Line) []lineDTO {
	out := make([]lineDTO, 0, len(in))
	for _, l := range in {
		out = append(out, lineDTO{
			Speaker:  l.Speaker,
			Name:     l.Character.Name,
			Avatar:   l.Character.Avatar,
			Color:    l.Character.Color,
			Text:     l.Text,
			IsPlayer: l.IsPlayer,
			DelayMs:  l.Delay.Milliseconds(),
		})
	}
	return out
}

// turnMessage carries t's lines, which the session counts as shown once written.
// A partial turn asks the client to send advance after animating the lines.
func turnMessage(sess *session.Session, t session.Turn) outbound {
	canUndo, canRedo := sess.CanUndo(), sess.CanRedo()
	msg := outbound{
		Type:    MsgTurn,
		Lines:   toLines(t.Lines),
		Ended:   t.Ended,
		Partial: t.Partial(),
		CanUndo: &canUndo,
		CanRedo: &canRedo,
		shown:   len(t.Lines),
	}
	for _, c := range t.Choices {
		msg.Choices = append(msg.Choices, choiceDTO{Index: c.Index, Text: c.Text})
	}
	return msg
}

func historyMessage(sess *session.Session) outbound {
	allow := sess.AllowRestart()
	return outbound{
		Type:         MsgHistory,
		Scenario:     sess.ID(),
		Title:        sess.Title(),
		AllowRestart: &allow,
		Lines:        toLines(sess.History()),
	}
}

// serveWS plays ?scenario=<id> (or the current scenario) over one connection: history
// and the first turn on connect, then one turn per inbound command.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("scenario")
	if id == "" {
		cur, err := s.lib.Current(ctx)
		if err != nil {
			http.Error(w, s.loc.T("noScenario"), http.StatusNotFound)
			return
		}
		id = cur
	}
	sess, err := s.lib.Open(ctx, id)
	if errors.Is(err, session.ErrScenarioNotFound) {
		http.Error(w, s.loc.Tf("scenarioNotFound", map[string]any{"id": id}), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, s.loc.Error(err), http.StatusUnprocessableEntity)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", slog.Any("err", err))
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxInboundBytes)
	log := applog.WithScenario(s.log, id)
	log.Info("client connected", slog.String("remote", r.RemoteAddr))

	send := func(msgs ...outbound) bool {
		for _, msg := range msgs {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("write failed", slog.Any("err", err))
				return false
			}
			sess.Shown(ctx, msg.shown)
		}
		return true
	}
	if !send(historyMessage(sess), turnMessage(sess, sess.Advance(ctx))) {
		return
	}
	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", slog.Any("err", err))
			}
			return
		}
		if !send(s.dispatch(ctx, sess, in)...) {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, in inboundMessage) []outbound {
	fail := func(msg string) []outbound { return []outbound{{Type: MsgError, Error: msg}} }
	switch in.Type {
	case CmdChoose:
		var p choosePayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return fail(s.loc.Tf("invalidChoice", map[string]any{"input": string(in.Payload)}))
		}
		turn, err := sess.Choose(ctx, p.Index)
		if err != nil {
			return fail(s.loc.Tf("invalidChoice", map[string]any{"input": p.Index}))
		}
		return []outbound{turnMessage(sess, turn)}
	case CmdAdvance:
		return []outbound{turnMessage(sess, sess.Advance(ctx))}
	case CmdRestart:
		turn, err := sess.Restart(ctx)
		if err != nil {
			return fail(s.loc.T("restartNotAllowed"))
		}
		return rewound(sess, turn)
	case CmdUndo, CmdRedo:
		undo := sess.Undo
		if in.Type == CmdRedo {
			undo = sess.Redo
		}
		turn, err := undo(ctx)
		if err != nil {
			return fail(s.loc.T("nothingToUndo"))
		}
		return rewound(sess, turn)
	}
	return fail("unknown command: " + in.Type)
}

// rewound replaces the client's log with the history, then continues with turn.
func rewound(sess *session.Session, turn session.Turn) []outbound {
	return []outbound{historyMessage(sess), turnMessage(sess, turn)}
}

// checkOrigin admits clients without an Origin header, same-origin pages, and the
// configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	s.log.Warn("websocket origin rejected", slog.String("origin", origin))
	return false
}
