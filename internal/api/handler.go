package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/openpalette/quill/internal/models"
	"github.com/openpalette/quill/internal/session"
	"github.com/openpalette/quill/internal/turn"
)

type Handler struct {
	store  *session.Store
	turns  *turn.Orchestrator
	logger *zap.Logger
}

func NewHandler(store *session.Store, turns *turn.Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		turns:  turns,
		logger: logger,
	}
}

type MessageRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Content        string              `json:"content"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	EditIndex      *int                `json:"edit_index,omitempty"`
}

type RegenerateRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageIndex   int    `json:"message_index"`
}

type CancelRequest struct {
	ConversationID string `json:"conversation_id"`
}

type UpdateConversationRequest struct {
	Title  *string `json:"title,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Pinned       bool   `json:"pinned"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

type turnDone struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Cancelled      bool   `json:"cancelled,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HandleMessage submits a turn and streams whole-message snapshots of
// the model reply back as server-sent events, ending with a "done"
// event carrying the settled state.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}

	editIndex := turn.NoEdit
	if req.EditIndex != nil {
		editIndex = *req.EditIndex
	}

	h.streamTurn(w, r, func(onSnapshot func(models.Message)) (turn.Result, error) {
		return h.turns.Submit(r.Context(), turn.Input{
			SessionID:   req.ConversationID,
			Text:        req.Content,
			Attachments: req.Attachments,
			EditIndex:   editIndex,
			OnSnapshot:  onSnapshot,
		})
	})
}

// HandleRegenerate re-runs a model message as a fresh turn, with the
// same SSE response shape as HandleMessage.
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.streamTurn(w, r, func(onSnapshot func(models.Message)) (turn.Result, error) {
		return h.turns.Regenerate(r.Context(), req.ConversationID, req.MessageIndex, onSnapshot)
	})
}

func (h *Handler) streamTurn(w http.ResponseWriter, r *http.Request, run func(func(models.Message)) (turn.Result, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	onSnapshot := func(msg models.Message) {
		h.writeEvent(w, flusher, "message", msg)
	}

	res, err := run(onSnapshot)

	done := turnDone{
		ConversationID: res.SessionID,
		MessageID:      res.MessageID,
		Cancelled:      res.Cancelled,
	}
	if err != nil {
		h.logger.Error("turn settled with error", zap.Error(err))
		done.Error = err.Error()
	}
	h.writeEvent(w, flusher, "done", done)
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// GetConversations lists sessions in display order: pinned first
// (alphabetical), then recent.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.store.List()
	summaries := make([]ConversationSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, ConversationSummary{
			ID:           sess.ID,
			Title:        sess.Title,
			Pinned:       sess.Pinned,
			MessageCount: len(sess.Messages),
			UpdatedAt:    sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.logger.Error("Failed to encode conversations", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	sess, ok := h.store.Get(convID)
	if !ok {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess.Messages); err != nil {
		h.logger.Error("Failed to encode messages", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.turns.Cancel(req.ConversationID) {
		http.Error(w, "No active turn", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	h.store.Delete(convID)
	w.WriteHeader(http.StatusOK)
}

// UpdateConversation renames a session and/or toggles its pinned flag.
func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID := r.URL.Query().Get("conversation_id")
	if convID == "" {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, ok := h.store.Get(convID); !ok {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if req.Title != nil {
		h.store.Rename(convID, *req.Title)
	}
	if req.Pinned != nil {
		h.store.SetPinned(convID, *req.Pinned)
	}
	w.WriteHeader(http.StatusOK)
}
