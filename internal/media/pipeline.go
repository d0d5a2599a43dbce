package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// Fetcher pulls attachment bytes from the chat provider.
type Fetcher interface {
	FetchMedia(ctx context.Context, mediaID string) (data []byte, contentType string, err error)
}

// Store persists fetched attachments.
type Store interface {
	SaveMedia(ctx context.Context, key string, rec session.MediaRecord) error
	GetMedia(ctx context.Context, key string) (session.MediaRecord, error)
}

// Notifier forwards a received attachment to the shop owner by reference.
type Notifier interface {
	SendImage(ctx context.Context, identity, mediaID, caption string) error
}

// Pipeline ingests inbound attachments: fetch from the provider, persist
// under the order (or staging) reference, and tip off the owner.
type Pipeline struct {
	fetcher Fetcher
	store   Store
	gateway Notifier
	owner   string
	logger  *logging.Logger
	tracer  trace.Tracer
}

func NewPipeline(fetcher Fetcher, store Store, gateway Notifier, owner string, logger *logging.Logger) *Pipeline {
	if fetcher == nil {
		panic("media: fetcher cannot be nil")
	}
	if store == nil {
		panic("media: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   store,
		gateway: gateway,
		owner:   owner,
		logger:  logger,
		tracer:  otel.Tracer("orderbot.internal.media"),
	}
}

// StagingRef is the reference used for attachments that arrive before an
// order exists. The finalizer re-homes them under the real reference.
func (p *Pipeline) StagingRef(identity string) string { return "staging:" + identity }

// Ingest fetches one attachment and stores it under ref/kind. The owner
// notification is best-effort; a failed fetch or store is the caller's cue
// to ask the customer to resend.
func (p *Pipeline) Ingest(ctx context.Context, identity, mediaID, ref, kind string) error {
	ctx, span := p.tracer.Start(ctx, "media.ingest",
		trace.WithAttributes(attribute.String("kind", kind)))
	defer span.End()

	data, contentType, err := p.fetcher.FetchMedia(ctx, mediaID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("media: fetch %s: %w", mediaID, err)
	}

	key := session.MediaKey(ref, kind)
	rec := session.MediaRecord{
		OrderRef:    ref,
		MediaID:     mediaID,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.SaveMedia(ctx, key, rec); err != nil {
		span.RecordError(err)
		return fmt.Errorf("media: store %s: %w", key, err)
	}

	if p.gateway != nil && p.owner != "" && p.owner != identity {
		caption := fmt.Sprintf("Received %s from %s (ref %s)", describeKind(kind), identity, ref)
		if err := p.gateway.SendImage(ctx, p.owner, mediaID, caption); err != nil {
			p.logger.Warn("failed to forward attachment to owner", "ref", ref, "error", err)
		}
	}
	return nil
}

func describeKind(kind string) string {
	switch kind {
	case "payment_proof":
		return "a payment proof"
	case "design":
		return "a design image"
	default:
		return "an attachment"
	}
}

// ServeHTTP exposes stored attachments at /media/{ref}/{kind} for the shop
// staff. Expired media returns 404 like media that never existed.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	kind := chi.URLParam(r, "kind")

	rec, err := p.store.GetMedia(r.Context(), session.MediaKey(ref, kind))
	if errors.Is(err, session.ErrMediaNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		p.logger.Error("media lookup failed", "ref", ref, "kind", kind, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(rec.Data)
}
