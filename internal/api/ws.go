package api

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/joeldelcastillo/verndale-chat-app/internal/metrics"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
	"github.com/joeldelcastillo/verndale-chat-app/internal/realtime"
)

// clientFrame is what the browser sends over the stream.
type clientFrame struct {
	Type           string `json:"type"` // select | send | typing | heartbeat
	ConversationID string `json:"conversation_id,omitempty"`
	OtherUserID    string `json:"other_user_id,omitempty"`
	Body           string `json:"body,omitempty"`
	MsgType        string `json:"msg_type,omitempty"`
	HasExisting    bool   `json:"has_existing,omitempty"`
	Typing         bool   `json:"typing,omitempty"`
}

// serverFrame is what the stream pushes back: a state delta keyed by kind.
type serverFrame struct {
	Kind           string                         `json:"kind"`
	ConversationID string                         `json:"conversation_id,omitempty"`
	Phase          realtime.Phase                 `json:"phase,omitempty"`
	Users          map[string]models.User         `json:"users,omitempty"`
	Conversations  map[string]models.Conversation `json:"conversations,omitempty"`
	Messages       []models.Message               `json:"messages,omitempty"`
	Private        *models.PrivateUser            `json:"private,omitempty"`
	Error          string                         `json:"error,omitempty"`
}

// handleWS runs one viewer's realtime session: it owns a Syncer for the
// connection's lifetime, pushes state deltas as the store changes, and
// accepts select/send/typing frames. Auth is a token query parameter
// because browsers cannot set headers on websocket upgrades.
func (s *Server) handleWS(conn *websocket.Conn) {
	viewerID, err := s.tokens.Verify(conn.Query("token"))
	if err != nil {
		_ = conn.WriteJSON(serverFrame{Kind: "error", Error: "invalid token"})
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	if err := s.presence.Online(ctx, viewerID); err != nil {
		s.log.Warnw("presence online", "user", viewerID, "err", err)
	}
	defer func() {
		offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer offCancel()
		if err := s.presence.Offline(offCtx, viewerID); err != nil {
			s.log.Warnw("presence offline", "user", viewerID, "err", err)
		}
	}()

	syncer := realtime.NewSyncer(viewerID, s.cols, s.log)
	if err := syncer.Run(ctx); err != nil {
		s.log.Errorw("syncer start", "user", viewerID, "err", err)
		_ = conn.WriteJSON(serverFrame{Kind: "error", Error: "subscription failed"})
		_ = conn.Close()
		return
	}
	defer syncer.Close()

	// one writer goroutine; the read loop below never writes
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-syncer.Updates():
				if !ok {
					return
				}
				if err := conn.WriteJSON(s.frameFor(syncer, u)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.handleFrame(ctx, syncer, viewerID, frame)
	}
}

func (s *Server) frameFor(syncer *realtime.Syncer, u realtime.Update) serverFrame {
	out := serverFrame{Kind: u.Kind, ConversationID: u.ConversationID}
	switch u.Kind {
	case "users":
		out.Users = syncer.Users()
	case "conversations":
		out.Conversations = syncer.Conversations()
	case "messages":
		out.Messages = syncer.Messages(u.ConversationID)
	case "private":
		p := syncer.Private()
		out.Private = &p
	case "phase":
		out.Phase = syncer.Phase()
	}
	return out
}

// handleFrame never writes to the connection; pushing is the writer
// goroutine's job alone.
func (s *Server) handleFrame(ctx context.Context, syncer *realtime.Syncer, viewerID string, frame clientFrame) {
	switch frame.Type {
	case "select":
		if err := syncer.SetActive(ctx, frame.ConversationID); err != nil {
			s.log.Errorw("select conversation", "user", viewerID, "conversation", frame.ConversationID, "err", err)
		}
	case "send":
		reqCtx, cancel := s.requestCtx()
		defer cancel()
		if _, err := s.chat.Send(reqCtx, viewerID, frame.OtherUserID, frame.Body, frame.MsgType, frame.HasExisting); err != nil {
			s.log.Errorw("ws send", "user", viewerID, "err", err)
		}
	case "typing":
		if !viewerIsMember(viewerID, frame.ConversationID) {
			s.log.Warnw("typing on foreign conversation", "user", viewerID, "conversation", frame.ConversationID)
			return
		}
		writer := ""
		if frame.Typing {
			writer = viewerID
		}
		reqCtx, cancel := s.requestCtx()
		defer cancel()
		if err := s.cols.Conversations.SetWriting(reqCtx, frame.ConversationID, writer); err != nil {
			s.log.Warnw("ws typing", "user", viewerID, "err", err)
		}
	case "heartbeat":
		if err := s.presence.Heartbeat(ctx, viewerID); err != nil {
			s.log.Warnw("presence heartbeat", "user", viewerID, "err", err)
		}
	}
}
