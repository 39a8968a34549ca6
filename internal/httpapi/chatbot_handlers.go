package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tasktrail.org/internal/chatbot"
)

type chatRequest struct {
	Message     string            `json:"message"`
	History     []chatbot.Message `json:"history"`
	TaskContext string            `json:"task_context"`
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := a.chat.GenerateReply(r.Context(), chatbot.Request{
		UserMessage: req.Message,
		History:     req.History,
		TaskContext: req.TaskContext,
		UserName:    identity.Username,
	})
	if err != nil {
		if errors.Is(err, chatbot.ErrNotConfigured) {
			writeError(w, r, http.StatusServiceUnavailable, "assistant is not configured")
			return
		}
		writeError(w, r, http.StatusBadGateway, "assistant is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}
