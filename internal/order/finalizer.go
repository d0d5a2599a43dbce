package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// StatusPending is the status every order starts in.
const StatusPending = "pending"

const refLength = 8

// refAlphabet omits nothing: references are read back over the phone, so
// uppercase letters and digits only.
const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Store is the persistence the finalizer needs: save the snapshot and
// re-home any attachment staged before the order had a reference.
type Store interface {
	SaveOrder(ctx context.Context, ref string, rec session.OrderRecord) error
	GetMedia(ctx context.Context, key string) (session.MediaRecord, error)
	RenameMedia(ctx context.Context, fromKey, toKey string) error
}

// Notifier delivers the confirmation to the customer side and the full
// order to the shop owner.
type Notifier interface {
	SendText(ctx context.Context, identity, text string) error
}

// Finalizer turns a completed conversation into a durable order snapshot.
type Finalizer struct {
	store      Store
	gateway    Notifier
	owner      string
	stagingRef func(identity string) string
	logger     *logging.Logger
	tracer     trace.Tracer
	newRef     func() (string, error)
}

func NewFinalizer(store Store, gateway Notifier, owner string, stagingRef func(string) string, logger *logging.Logger) *Finalizer {
	if store == nil {
		panic("order: store cannot be nil")
	}
	if gateway == nil {
		panic("order: gateway cannot be nil")
	}
	if stagingRef == nil {
		stagingRef = func(identity string) string { return "staging:" + identity }
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Finalizer{
		store:      store,
		gateway:    gateway,
		owner:      owner,
		stagingRef: stagingRef,
		logger:     logger,
		tracer:     otel.Tracer("orderbot.internal.order"),
		newRef:     RefCode,
	}
}

// RefCode generates an order reference: eight characters from the
// uppercase-and-digits alphabet.
func RefCode() (string, error) {
	buf := make([]byte, refLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order: generate reference: %w", err)
	}
	out := make([]byte, refLength)
	for i, b := range buf {
		out[i] = refAlphabet[int(b)%len(refAlphabet)]
	}
	return string(out), nil
}

// Finalize snapshots the in-flight order, attaches any staged design image,
// and notifies the owner. The snapshot write is the one operation that must
// succeed; notification failures are logged and swallowed.
func (f *Finalizer) Finalize(ctx context.Context, rec session.Record, totalPrice int) (session.OrderRecord, error) {
	ctx, span := f.tracer.Start(ctx, "order.finalize")
	defer span.End()

	ref, err := f.newRef()
	if err != nil {
		span.RecordError(err)
		return session.OrderRecord{}, err
	}

	order := session.OrderRecord{
		Ref:          ref,
		Fields:       rec.Order,
		SelectedItem: rec.SelectedItem,
		CakeType:     rec.CakeType,
		TotalPrice:   totalPrice,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	// A design image sent while the order was still being collected sits
	// under a staging key; move it under the real reference now.
	stagedKey := session.MediaKey(f.stagingRef(rec.Identity), "design")
	if _, err := f.store.GetMedia(ctx, stagedKey); err == nil {
		designKey := session.MediaKey(ref, "design")
		if err := f.store.RenameMedia(ctx, stagedKey, designKey); err != nil {
			f.logger.Warn("failed to attach staged design image", "ref", ref, "error", err)
		} else {
			order.DesignMediaKey = designKey
		}
	} else if !errors.Is(err, session.ErrMediaNotFound) {
		f.logger.Warn("staged media lookup failed", "identity", rec.Identity, "error", err)
	}

	if err := f.store.SaveOrder(ctx, ref, order); err != nil {
		span.RecordError(err)
		return session.OrderRecord{}, fmt.Errorf("order: save %s: %w", ref, err)
	}

	if f.owner != "" && f.owner != rec.Identity {
		if err := f.gateway.SendText(ctx, f.owner, ownerNotification(rec.Identity, order)); err != nil {
			f.logger.Error("failed to notify owner of new order", "ref", ref, "error", err)
		}
	}
	return order, nil
}

// ownerNotification renders the full order for the shop owner, every
// collected field included.
func ownerNotification(identity string, order session.OrderRecord) string {
	o := order.Fields
	var sb strings.Builder
	sb.WriteString("🔔 *New Order* 🔔\n\n")
	sb.WriteString("Order number: " + order.Ref + "\n")
	sb.WriteString("From: " + identity + "\n")
	if order.CakeType != "" {
		sb.WriteString("Type: " + order.CakeType + "\n")
	}
	sb.WriteString("Item: " + order.SelectedItem + "\n")
	line := func(label, value string) {
		if value != "" {
			sb.WriteString(label + ": " + value + "\n")
		}
	}
	line("Name", o.Name)
	line("Contact", o.Contact)
	if len(o.Flavors) > 0 {
		sb.WriteString("Flavours: " + strings.Join(o.Flavors, ", ") + "\n")
	}
	line("Filling", o.Filling)
	line("Icing", o.Icing)
	line("Shape", o.Shape)
	line("Theme", o.Theme)
	line("Due date", o.DueDate)
	line("Due time", o.DueTime)
	line("Colors", o.Colors)
	line("Message", o.Message)
	line("Referral", o.Referral)
	line("Special requests", o.SpecialRequests)
	line("Collection", o.CollectionPoint)
	line("Payment", o.PaymentMethod)
	sb.WriteString(fmt.Sprintf("\n*Total: $%d*", order.TotalPrice))
	if order.DesignMediaKey != "" {
		sb.WriteString("\nDesign image attached to the order.")
	}
	return sb.String()
}
