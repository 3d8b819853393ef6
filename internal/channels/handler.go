package channels

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/linerelay/internal/platform/middleware"
)

const defaultMaxBodyBytes = 1 << 20

// Handler serves the LINE webhook callback.
type Handler struct {
	verifier     Verifier
	dispatcher   *Dispatcher
	sink         EventSink
	metrics      *Metrics
	logger       *slog.Logger
	maxBodyBytes int64
	now          func() time.Time
}

// HandlerConfig holds the handler collaborators.
type HandlerConfig struct {
	Verifier     Verifier
	Dispatcher   *Dispatcher
	Sink         EventSink
	Metrics      *Metrics
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(logger, cfg.Metrics)
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		verifier:     cfg.Verifier,
		dispatcher:   dispatcher,
		sink:         cfg.Sink,
		metrics:      cfg.Metrics,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// HandleCallback processes inbound LINE webhook traffic.
// POST /callback
//
// The body is authenticated before it is parsed. Once it is authenticated
// and structurally valid the response is 200 regardless of per-event
// reply outcomes.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetRequestID(ctx)
	if correlationID == "" {
		correlationID = "line-" + strconv.FormatInt(h.now().UnixNano(), 10)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.observeWebhook("invalid_body")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":          "invalid request body",
			"correlation_id": correlationID,
		})
		return
	}

	if h.verifier == nil {
		h.metrics.observeWebhook("rejected_signature")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":          ErrInvalidSignature.Error(),
			"correlation_id": correlationID,
		})
		return
	}
	if err := h.verifier.Verify(r.Header, body, h.now()); err != nil {
		h.logger.WarnContext(ctx, "channel webhook signature rejected",
			"correlation_id", correlationID,
			"missing", errors.Is(err, ErrMissingSignature),
		)
		h.metrics.observeWebhook("rejected_signature")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":          err.Error(),
			"correlation_id": correlationID,
		})
		return
	}

	events, err := ParseWebhookPayload(body)
	if err != nil {
		h.logger.WarnContext(ctx, "channel webhook payload rejected",
			"correlation_id", correlationID,
			"error", err,
		)
		h.metrics.observeWebhook("malformed_payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":          "invalid webhook payload",
			"correlation_id": correlationID,
		})
		return
	}

	if h.sink != nil && len(events) > 0 {
		outcomes := h.dispatcher.Dispatch(ctx, events, h.sink)
		handled, failed, ignored := summarizeOutcomes(outcomes)
		h.logger.InfoContext(ctx, "channel webhook processed",
			"correlation_id", correlationID,
			"events", len(events),
			"handled", handled,
			"failed", failed,
			"ignored", ignored,
		)
	}

	h.metrics.observeWebhook("accepted")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
