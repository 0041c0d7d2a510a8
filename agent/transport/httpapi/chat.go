package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	orchestratorx "github.com/tanpawarit/chative-retail/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-retail/agent/contract"
)

type MessageRequest struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	Channel    string `json:"channel"`
	Message    string `json:"message"`
}

func (m MessageRequest) toTurn() orchestratorx.Request {
	return orchestratorx.Request{
		SessionID:  m.SessionID,
		CustomerID: m.CustomerID,
		Channel:    m.Channel,
		Text:       m.Message,
	}
}

type MessageResponse struct {
	SessionID string                `json:"session_id"`
	Handler   contractx.HandlerName `json:"handler"`
	Reply     string                `json:"reply"`
}

type streamChunk struct {
	Chunk string `json:"chunk"`
}

type streamDone struct {
	Done      bool                  `json:"done"`
	SessionID string                `json:"session_id"`
	Handler   contractx.HandlerName `json:"handler"`
}

type streamError struct {
	Error string `json:"error"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := s.chat.HandleMessage(r.Context(), req.toTurn())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		SessionID: reply.SessionID,
		Handler:   reply.Handler,
		Reply:     reply.Reply,
	})
}

// handleMessageStream relays reply chunks as SSE data frames. The turn is only
// persisted when the stream is drained; a client that disconnects early
// leaves the session without this turn.
func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errors.New("streaming not supported"))
		return
	}

	stream, err := s.chat.HandleMessageStream(r.Context(), req.toTurn())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	logger := hlog.FromRequest(r)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Error().Err(err).Str("session_id", stream.SessionID()).Msg("reply stream failed")
			msg := "the assistant is temporarily unavailable"
			if !errors.Is(err, contractx.ErrModelInvoke) {
				msg = http.StatusText(http.StatusInternalServerError)
			}
			_ = writeSSE(w, streamError{Error: msg})
			flusher.Flush()
			return
		}
		if chunk == "" {
			continue
		}
		if err := writeSSE(w, streamChunk{Chunk: chunk}); err != nil {
			logger.Warn().Err(err).Str("session_id", stream.SessionID()).Msg("client went away mid-stream")
			return
		}
		flusher.Flush()
	}

	if err := writeSSE(w, streamDone{Done: true, SessionID: stream.SessionID(), Handler: stream.Handler()}); err != nil {
		logger.Warn().Err(err).Msg("failed to write SSE done event")
		return
	}
	flusher.Flush()
}

func writeSSE(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
