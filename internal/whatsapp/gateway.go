package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/observability/metrics"
	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// Transport is the outbound capability of the chat provider.
type Transport interface {
	SendText(ctx context.Context, to, body string) error
	SendButtons(ctx context.Context, to, body string, buttons []Option) error
	SendList(ctx context.Context, to, body, sectionTitle, buttonLabel string, rows []Option, descriptions map[string]string) error
	SendImageByID(ctx context.Context, to, mediaID, caption string) error
}

// InteractionLogger records delivered messages for audit. Append is
// best-effort and never returns an error.
type InteractionLogger interface {
	AppendLog(ctx context.Context, identity string, entry session.LogEntry)
}

const (
	listSectionTitle = "Available Options"
	listButtonLabel  = "Options"
)

// Gateway encodes prompts into transport shapes under the provider's size
// limits, degrading richer formats to plain text when the transport rejects
// them: list → text, buttons → text, each retried at most once and never at
// the same format.
type Gateway struct {
	transport Transport
	log       InteractionLogger
	metrics   *metrics.MessagingMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

func NewGateway(transport Transport, log InteractionLogger, m *metrics.MessagingMetrics, logger *logging.Logger) *Gateway {
	if transport == nil {
		panic("whatsapp: transport cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		transport: transport,
		log:       log,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("orderbot.internal.whatsapp.gateway"),
	}
}

// SendText delivers text, splitting oversized bodies into fixed-size chunks.
// Each chunk is attempted independently; one failed chunk does not cancel
// the rest.
func (g *Gateway) SendText(ctx context.Context, identity, text string) error {
	ctx, span := g.tracer.Start(ctx, "gateway.send_text")
	defer span.End()

	var errs []error
	for _, part := range chunk(text, TextChunkSize) {
		if err := g.transport.SendText(ctx, identity, part); err != nil {
			span.RecordError(err)
			g.metrics.ObserveOutbound("text", "error")
			g.logger.Error("failed to send text", "identity", identity, "error", err)
			errs = append(errs, err)
			continue
		}
		g.metrics.ObserveOutbound("text", "ok")
		g.logOut(ctx, identity, "text", map[string]any{"text": part})
	}
	return errors.Join(errs...)
}

// SendButtons delivers up to three quick-reply buttons, repairing malformed
// options and truncating to transport limits. On rejection it falls back to
// a plain-text rendering and still reports the failure to the caller.
func (g *Gateway) SendButtons(ctx context.Context, identity, text string, options []Option) error {
	ctx, span := g.tracer.Start(ctx, "gateway.send_buttons")
	defer span.End()

	if len(options) > MaxButtons {
		options = options[:MaxButtons]
	}
	cleaned := make([]Option, 0, len(options))
	for i, opt := range options {
		if opt.ID == "" || len(opt.ID) > 256 {
			opt.ID = fmt.Sprintf("button_%d", i+1)
		}
		if opt.Label == "" {
			opt.Label = fmt.Sprintf("Option %d", i+1)
		}
		opt.Label = truncateTitle(opt.Label, MaxButtonTitleLength)
		cleaned = append(cleaned, opt)
	}
	body := truncateBody(text)

	if err := g.transport.SendButtons(ctx, identity, body, cleaned); err != nil {
		span.RecordError(err)
		g.metrics.ObserveOutbound("buttons", "error")
		g.metrics.ObserveFallback("buttons")
		g.logger.Warn("button send rejected, degrading to text", "identity", identity, "error", err)
		var sb strings.Builder
		sb.WriteString(text)
		sb.WriteString("\n")
		for _, opt := range options {
			sb.WriteString("\n- " + opt.Label)
		}
		if fbErr := g.SendText(ctx, identity, sb.String()); fbErr != nil {
			g.logger.Error("button fallback text also failed", "identity", identity, "error", fbErr)
		}
		return err
	}
	g.metrics.ObserveOutbound("buttons", "ok")
	g.logOut(ctx, identity, "button", map[string]any{"text": body, "buttons": cleaned})
	return nil
}

// SendList delivers up to ten selectable rows. Labels beyond the row-title
// cap spill into the row description. Rejection degrades to a numbered
// plain-text enumeration.
func (g *Gateway) SendList(ctx context.Context, identity, text string, options []Option) error {
	ctx, span := g.tracer.Start(ctx, "gateway.send_list")
	defer span.End()

	if len(options) > MaxListRows {
		options = options[:MaxListRows]
	}
	rows := make([]Option, 0, len(options))
	descriptions := make(map[string]string)
	for i, opt := range options {
		if opt.ID == "" {
			opt.ID = fmt.Sprintf("option_%d", i+1)
		}
		label := opt.Label
		if len(label) > MaxRowTitleLength {
			head := cutAtRune(label, MaxRowTitleLength)
			rest := label[len(head):]
			if len(rest) > MaxRowDescLength {
				rest = cutAtRune(rest, MaxRowDescLength)
			}
			descriptions[opt.ID] = rest
			opt.Label = head
		}
		rows = append(rows, opt)
	}
	body := truncateBody(text)

	if err := g.transport.SendList(ctx, identity, body, listSectionTitle, listButtonLabel, rows, descriptions); err != nil {
		span.RecordError(err)
		g.metrics.ObserveOutbound("list", "error")
		g.metrics.ObserveFallback("list")
		g.logger.Warn("list send rejected, degrading to text", "identity", identity, "error", err)
		var sb strings.Builder
		sb.WriteString(text)
		sb.WriteString("\n")
		for i, opt := range options {
			sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt.Label))
		}
		if fbErr := g.SendText(ctx, identity, sb.String()); fbErr != nil {
			g.logger.Error("list fallback text also failed", "identity", identity, "error", fbErr)
		}
		return err
	}
	g.metrics.ObserveOutbound("list", "ok")
	g.logOut(ctx, identity, "list", map[string]any{"text": body, "options": options})
	return nil
}

// SendImage relays an attachment by media reference, typically into a
// handover session or to the owner.
func (g *Gateway) SendImage(ctx context.Context, identity, mediaID, caption string) error {
	ctx, span := g.tracer.Start(ctx, "gateway.send_image")
	defer span.End()

	if err := g.transport.SendImageByID(ctx, identity, mediaID, caption); err != nil {
		span.RecordError(err)
		g.metrics.ObserveOutbound("image", "error")
		return err
	}
	g.metrics.ObserveOutbound("image", "ok")
	g.logOut(ctx, identity, "raw", map[string]any{"media_id": mediaID, "caption": caption})
	return nil
}

// logOut appends an "out" entry after a successful delivery only.
func (g *Gateway) logOut(ctx context.Context, identity, kind string, payload map[string]any) {
	if g.log == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	g.log.AppendLog(ctx, identity, session.LogEntry{Direction: "out", Kind: kind, Payload: data})
}

func truncateBody(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if text == "" {
		text = "New message"
	}
	if len(text) > MaxBodyLength {
		return cutAtRune(text, MaxBodyLength-3) + "..."
	}
	return text
}

func truncateTitle(title string, max int) string {
	if len(title) <= max {
		return title
	}
	return cutAtRune(title, max-3) + "..."
}

func chunk(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	parts := make([]string, 0, (len(text)+size-1)/size)
	for len(text) > size {
		head := cutAtRune(text, size)
		if head == "" {
			head = text[:size]
		}
		parts = append(parts, head)
		text = text[len(head):]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// cutAtRune returns the longest prefix of s that is at most n bytes and ends
// on a rune boundary, so a cut never leaves a partial multi-byte sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
