package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/courier/pkg/delivery"
	"github.com/dmitrymomot/courier/pkg/logger"
)

// EventHandler applies a batch of provider events.
type EventHandler interface {
	HandleEvents(ctx context.Context, events []delivery.Event) delivery.Summary
}

// Response is the body of a successful webhook reply.
type Response struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// ErrorResponse is the body of a rejected webhook request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler receives email delivery events. Status codes: 405 for any method
// but POST, 400 when the body is not a JSON array, 401 on a bad signature,
// 200 with the number of received events otherwise and 500 on an
// unexpected failure.
type Handler struct {
	events  EventHandler
	secret  string
	maxAge  time.Duration
	maxBody int64
	now     func() time.Time
	logger  *slog.Logger
}

// NewHandler creates a Handler. It panics on a nil EventHandler.
func NewHandler(events EventHandler, opts ...Option) *Handler {
	if events == nil {
		panic("webhook: event handler is nil")
	}
	h := &Handler{
		events:  events,
		maxAge:  5 * time.Minute,
		maxBody: 1 << 20,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(ctx, "webhook handler panicked", slog.Any("panic", rec))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return
	}

	if h.secret != "" {
		sig, err := ExtractSignatureHeaders(r.Header)
		if err == nil {
			err = VerifySignature(h.secret, body, sig, h.maxAge, h.now())
		}
		if err != nil {
			h.logger.WarnContext(ctx, "rejected webhook with invalid signature", logger.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
			return
		}
	}

	events, err := DecodeEvents(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "expected array of events"})
		return
	}

	sum := h.events.HandleEvents(ctx, events)
	h.logger.InfoContext(ctx, "processed email webhook",
		slog.Int("received", sum.Received),
		slog.Int("applied", sum.Applied),
		slog.Int("ignored", sum.Ignored),
		slog.Int("unmatched", sum.Unmatched),
		slog.Int("invalid", sum.Invalid),
		slog.Int("failed", sum.Failed))

	writeJSON(w, http.StatusOK, Response{Success: true, Processed: len(events)})
}

// DecodeEvents parses a JSON array of events. An element with a mistyped
// field keeps every field that did decode, so a bad optional value never
// hides its tracking id. Elements that are not objects become zero events
// and are counted as invalid without failing the batch.
func DecodeEvents(body []byte) ([]delivery.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidPayload
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	events := make([]delivery.Event, len(raw))
	for i, item := range raw {
		var ev delivery.Event
		_ = json.Unmarshal(item, &ev)
		events[i] = ev
	}
	return events, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
