package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joeldelcastillo/verndale-chat-app/internal/auth"
	"github.com/joeldelcastillo/verndale-chat-app/internal/chatid"
	"github.com/joeldelcastillo/verndale-chat-app/internal/models"
)

func (s *Server) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
}

// viewerIsMember reports whether the viewer is one of the two participants
// encoded in the conversation id. Every conversation-scoped route and
// stream frame goes through this check.
func viewerIsMember(viewer, conversationID string) bool {
	a, b, err := chatid.Members(conversationID)
	return err == nil && (viewer == a || viewer == b)
}

func (s *Server) register(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	if body.Email == "" || body.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password required"})
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	session, err := s.auth.Register(ctx, body.Email, body.Password, body.Name)
	if err != nil {
		if errors.Is(err, auth.ErrEmailInUse) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already in use", "code": "email_in_use"})
		}
		s.log.Errorw("register", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (s *Server) login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	session, err := s.auth.Login(ctx, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
		}
		s.log.Errorw("login", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(session)
}

func (s *Server) logout(c *fiber.Ctx) error {
	ctx, cancel := s.requestCtx()
	defer cancel()
	userID := currentUserID(c)
	if err := s.presence.Offline(ctx, userID); err != nil {
		s.log.Warnw("logout presence", "user", userID, "err", err)
	}
	if err := s.auth.Logout(ctx, userID); err != nil {
		s.log.Errorw("logout", "user", userID, "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	ctx, cancel := s.requestCtx()
	defer cancel()
	users, err := s.cols.Users.List(ctx)
	if err != nil {
		s.log.Errorw("list users", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(users)
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var body struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	if err := s.auth.UpdateProfile(ctx, currentUserID(c), body.Name, body.Avatar); err != nil {
		s.log.Errorw("update profile", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	ctx, cancel := s.requestCtx()
	defer cancel()
	convs, err := s.cols.Conversations.ListForMember(ctx, currentUserID(c))
	if err != nil {
		s.log.Errorw("list conversations", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(convs)
}

// messageView is a message enriched with the viewer-relative fields that
// are never persisted.
type messageView struct {
	models.Message
	Direction models.Direction `json:"direction"`
	Position  models.Position  `json:"position"`
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	viewer := currentUserID(c)
	if !viewerIsMember(viewer, conversationID) {
		return fiber.ErrForbidden
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	msgs, err := s.cols.Messages.List(ctx, conversationID, int64(c.QueryInt("limit", 50)), time.Time{})
	if err != nil {
		s.log.Errorw("list messages", "conversation", conversationID, "err", err)
		return fiber.ErrInternalServerError
	}
	positions := models.PositionsFor(msgs)
	out := make([]messageView, len(msgs))
	for i, m := range msgs {
		out[i] = messageView{Message: m, Direction: m.DirectionFor(viewer), Position: positions[i]}
	}
	return c.JSON(out)
}

func (s *Server) setTyping(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	viewer := currentUserID(c)
	if !viewerIsMember(viewer, conversationID) {
		return fiber.ErrForbidden
	}
	var body struct {
		Typing bool `json:"typing"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	writer := ""
	if body.Typing {
		writer = viewer
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	if err := s.cols.Conversations.SetWriting(ctx, conversationID, writer); err != nil {
		s.log.Errorw("set typing", "conversation", conversationID, "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var body struct {
		OtherUserID string `json:"other_user_id"`
		Body        string `json:"body"`
		Type        string `json:"type"`
		HasExisting bool   `json:"has_existing"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	if body.OtherUserID == "" || body.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "other_user_id and body required"})
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	msg, err := s.chat.Send(ctx, currentUserID(c), body.OtherUserID, body.Body, body.Type, body.HasExisting)
	if err != nil {
		if errors.Is(err, chatid.ErrEmptyID) || errors.Is(err, chatid.ErrInvalidID) || errors.Is(err, chatid.ErrSameMembers) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		s.log.Errorw("send message", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) uploadAvatar(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file missing"})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	ct := fileHeader.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	userID := currentUserID(c)
	ctx, cancel := s.requestCtx()
	defer cancel()
	key, err := s.media.UploadAvatar(ctx, userID, fileHeader.Filename, ct, data)
	if err != nil {
		// reset so the UI does not point at a half-written upload
		if uerr := s.cols.Users.UpdateFields(ctx, userID, map[string]any{"avatar": ""}); uerr != nil {
			s.log.Warnw("reset avatar", "user", userID, "err", uerr)
		}
		s.log.Errorw("upload avatar", "user", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}
