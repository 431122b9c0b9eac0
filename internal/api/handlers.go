package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/narumiruna/lazyopenai"
)

type SendRequest struct {
	// Messages is a string, a list of strings or a list of {role, content} objects.
	Messages    json.RawMessage `json:"messages"`
	Instruction string          `json:"instruction,omitempty"`
}

type SendResponse struct {
	Response string `json:"response"`
}

type CreateConversationRequest struct {
	Instruction string `json:"instruction,omitempty"`
}

type ConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

type MessagesResponse struct {
	ConversationID string               `json:"conversation_id"`
	Messages       []lazyopenai.Message `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	msgs, err := decodeMessages(req.Messages)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := s.opts
	if req.Instruction != "" {
		opts = append(opts[:len(opts):len(opts)], lazyopenai.WithInstruction(req.Instruction))
	}
	text, err := lazyopenai.Send(r.Context(), s.client, msgs, opts...)
	if err != nil {
		s.completionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SendResponse{Response: text})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0)
	for _, conv := range s.store.List() {
		ids = append(ids, conv.ID)
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"conversations": ids})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	opts := s.opts
	if req.Instruction != "" {
		opts = append(opts[:len(opts):len(opts)], lazyopenai.WithInstruction(req.Instruction))
	}
	ag, err := lazyopenai.NewAgent(s.client, opts...)
	if err != nil {
		s.logger.Error().Err(err).Msg("create conversation")
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	conv := s.store.Add(ag)
	s.writeJSON(w, http.StatusCreated, ConversationResponse{ConversationID: conv.ID})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conv := s.store.Get(chi.URLParam(r, "id"))
	if conv == nil {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, MessagesResponse{
		ConversationID: conv.ID,
		Messages:       conv.Agent.Messages(),
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conv := s.store.Get(chi.URLParam(r, "id"))
	if conv == nil {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		s.writeError(w, "message is required", http.StatusBadRequest)
		return
	}

	text, err := conv.Agent.Ask(r.Context(), req.Message)
	s.store.Touch(conv.ID)
	if err != nil {
		s.completionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ChatResponse{ConversationID: conv.ID, Response: text})
}

// decodeMessages accepts the same shapes as lazyopenai.NormalizeMessages.
func decodeMessages(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("messages is required")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var texts []string
	if err := json.Unmarshal(raw, &texts); err == nil {
		return texts, nil
	}
	var msgs []lazyopenai.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errors.New("messages must be a string, a list of strings or a list of messages")
	}
	return msgs, nil
}

func (s *Server) completionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lazyopenai.ErrInvalidInput),
		errors.Is(err, lazyopenai.ErrInvalidRole),
		errors.Is(err, lazyopenai.ErrMissingToolCallID):
		status = http.StatusBadRequest
	case errors.Is(err, lazyopenai.ErrLoopBoundExceeded),
		errors.Is(err, lazyopenai.ErrEmptyCompletionChoices),
		errors.Is(err, lazyopenai.ErrMissingTextContent):
		status = http.StatusBadGateway
	default:
		s.logger.Error().Err(err).Msg("completion error")
	}
	s.writeError(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
