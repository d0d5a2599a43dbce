package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/observability/metrics"
	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// Dispatcher advances one conversation by one utterance.
type Dispatcher interface {
	HandleMessage(ctx context.Context, rec session.Record, text string) (session.Record, error)
}

// SessionStore is the load/persist pair wrapped around each turn, plus the
// best-effort inbound audit log.
type SessionStore interface {
	Get(ctx context.Context, identity string) (session.Record, error)
	Put(ctx context.Context, identity string, rec session.Record) error
	AppendLog(ctx context.Context, identity string, entry session.LogEntry)
}

// Apologizer lets the handler tell the customer when their turn could not
// be persisted.
type Apologizer interface {
	SendText(ctx context.Context, identity, text string) error
}

// envelope is the WhatsApp Cloud API webhook shape, trimmed to the parts
// the bot consumes.
type envelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type      string `json:"type"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Image *struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	} `json:"image"`
}

const storageApology = "Sorry, something went wrong on our side. Please send that again."

// Handler terminates the provider webhook: verification on GET, message
// batches on POST.
type Handler struct {
	engine      Dispatcher
	store       SessionStore
	gateway     Apologizer
	verifyToken string
	metrics     *metrics.MessagingMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
}

func NewHandler(engine Dispatcher, store SessionStore, gateway Apologizer, verifyToken string, m *metrics.MessagingMetrics, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webhook: dispatcher cannot be nil")
	}
	if store == nil {
		panic("webhook: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:      engine,
		store:       store,
		gateway:     gateway,
		verifyToken: verifyToken,
		metrics:     m,
		logger:      logger,
		tracer:      otel.Tracer("orderbot.internal.webhook"),
	}
}

// Verify answers the provider's subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verifyToken {
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "verification failed", http.StatusForbidden)
}

// Receive processes one webhook delivery. Always 200: the provider retries
// non-2xx responses and a redelivered batch would replay turns.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "webhook.receive")
	defer span.End()

	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.logger.Warn("undecodable webhook payload", "error", err)
		h.metrics.ObserveInbound("unknown", "bad_payload")
		h.respond(w)
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.processMessage(ctx, msg)
			}
		}
	}
	h.respond(w)
}

func (h *Handler) respond(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"received"}`))
}

func (h *Handler) processMessage(ctx context.Context, msg inboundMessage) {
	ctx, span := h.tracer.Start(ctx, "webhook.process_message",
		trace.WithAttributes(attribute.String("message_type", msg.Type)))
	defer span.End()
	start := time.Now()

	identity := session.Normalize(msg.From)
	prompt, ok := extractPrompt(msg)
	if !ok {
		h.metrics.ObserveInbound(msg.Type, "unsupported")
		h.logger.Info("ignoring unsupported message type", "type", msg.Type, "identity", identity)
		return
	}

	if raw, err := json.Marshal(msg); err == nil {
		h.store.AppendLog(ctx, identity, session.LogEntry{Direction: "in", Kind: "raw", Payload: raw})
	}

	rec, err := h.store.Get(ctx, identity)
	if err != nil {
		h.logger.Error("failed to load session, starting fresh", "identity", identity, "error", err)
		rec = session.NewRecord(identity)
	}

	next, err := h.engine.HandleMessage(ctx, rec, prompt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("turn failed", "identity", identity, "error", err)
		h.metrics.ObserveInbound(msg.Type, "error")
	} else {
		h.metrics.ObserveInbound(msg.Type, "ok")
	}

	// The record is persisted even on a failed turn so the TTL refresh and
	// whatever progress the turn made both stick.
	if err := h.store.Put(ctx, identity, next); err != nil {
		span.RecordError(err)
		h.logger.Error("failed to persist session", "identity", identity, "error", err)
		if h.gateway != nil {
			_ = h.gateway.SendText(ctx, identity, storageApology)
		}
		if err := h.store.Put(ctx, identity, session.NewRecord(identity)); err != nil {
			h.logger.Error("failed to reset session", "identity", identity, "error", err)
		}
	}
	h.metrics.ObserveWebhookLatency(msg.Type, time.Since(start).Seconds())
}

// extractPrompt flattens the supported message shapes into the single
// utterance the dispatcher consumes. Attachments become IMAGE:<media id>.
func extractPrompt(msg inboundMessage) (string, bool) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return "", false
		}
		return msg.Text.Body, true
	case "interactive":
		if msg.Interactive == nil {
			return "", false
		}
		if lr := msg.Interactive.ListReply; lr != nil {
			if lr.Title != "" {
				return lr.Title, true
			}
			return lr.ID, true
		}
		if br := msg.Interactive.ButtonReply; br != nil {
			if br.ID != "" {
				return br.ID, true
			}
			return br.Title, true
		}
		return "", false
	case "image":
		if msg.Image == nil || msg.Image.ID == "" {
			return "", false
		}
		return "IMAGE:" + msg.Image.ID, true
	default:
		return "", false
	}
}
