package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"careportal/internal/auth"
	"careportal/internal/chat"
	"careportal/internal/model"
)

// maxBodyBytes caps REST request bodies.
const maxBodyBytes = 1 << 20

type createMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType"`
}

type createConversationRequest struct {
	ParticipantID  string   `json:"participantId"`
	ParticipantIDs []string `json:"participantIds"`
}

type conversationResponse struct {
	Conversation model.ConversationView `json:"conversation"`
	chat.Page
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, chat.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, chat.ErrSelfConversation), errors.Is(err, chat.ErrInvalidGroup):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, route string, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msgf("[%s] ❌ Internal error", route)
	} else {
		h.Log.Info().Err(err).Int("status", status).Msgf("[%s] ❌ Rejected", route)
	}
	writeError(w, status, chat.ClientMessage(err, fallback))
}

// CreateMessage handles POST /api/messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/messages"
	user, _ := auth.UserFrom(r.Context())

	// リクエストボディサイズを1MBに制限
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Log.Info().Err(err).Msgf("[%s] ❌ Bad Request", route)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.Chat.Send(r.Context(), user, chat.Draft{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		MessageType:    req.MessageType,
	})
	if err != nil {
		h.fail(w, route, err, "Failed to send message")
		return
	}

	h.Log.Info().Str("message_id", view.ID).Str("conversation_id", view.ConversationID).
		Msgf("[%s] ✅ Created message", route)
	writeJSON(w, http.StatusCreated, view)
}

// ListConversations handles GET /api/conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	const route = "GET /api/conversations"
	user, _ := auth.UserFrom(r.Context())

	views, err := h.Chat.Conversations(r.Context(), user)
	if err != nil {
		h.fail(w, route, err, "Failed to fetch conversations")
		return
	}

	h.Log.Debug().Int("count", len(views)).Str("user_id", user.ID).Msgf("[%s] ✅ Returned conversations", route)
	writeJSON(w, http.StatusOK, views)
}

// GetConversation handles GET /api/conversations/{id}?page=&limit=
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	route := fmt.Sprintf("GET /api/conversations/%s", id)
	user, _ := auth.UserFrom(r.Context())

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	limit, err := queryInt(r, "limit", chat.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	conv, err := h.Chat.Conversation(r.Context(), user, id)
	if err != nil {
		h.fail(w, route, err, "Failed to fetch conversation")
		return
	}
	history, err := h.Chat.History(r.Context(), user, id, page, limit)
	if err != nil {
		h.fail(w, route, err, "Failed to fetch messages")
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{Conversation: conv, Page: history})
}

// CreateConversation handles POST /api/conversations
// participantId なら1対1、participantIds ならグループ
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/conversations"
	user, _ := auth.UserFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Log.Info().Err(err).Msgf("[%s] ❌ Bad Request", route)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		view model.ConversationView
		err  error
	)
	switch {
	case len(req.ParticipantIDs) > 0:
		view, err = h.Chat.CreateGroup(r.Context(), user, req.ParticipantIDs)
	case req.ParticipantID != "":
		view, err = h.Chat.ResolveDirect(r.Context(), user, req.ParticipantID)
	default:
		writeError(w, http.StatusBadRequest, "participantId is required")
		return
	}
	if err != nil {
		h.fail(w, route, err, "Failed to create conversation")
		return
	}

	h.Log.Info().Str("conversation_id", view.ID).Str("user_id", user.ID).Msgf("[%s] ✅ Resolved conversation", route)
	writeJSON(w, http.StatusOK, view)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}
