package dispatcher

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// imagePrefix marks a synthetic utterance produced by the webhook layer for
// an inbound attachment. Everything after the prefix is the provider media id.
const imagePrefix = "IMAGE:"

// Messenger is the outbound side the engine talks to.
type Messenger interface {
	SendText(ctx context.Context, identity, text string) error
	SendButtons(ctx context.Context, identity, text string, options []whatsapp.Option) error
	SendList(ctx context.Context, identity, text string, options []whatsapp.Option) error
	SendImage(ctx context.Context, identity, mediaID, caption string) error
}

// Repository is the slice of durable storage the engine needs beyond the
// session record it is handed each turn.
type Repository interface {
	GetOrder(ctx context.Context, ref string) (session.OrderRecord, error)
	FindOrderByPhone(ctx context.Context, phone string) (session.OrderRecord, error)
	SaveInquiry(ctx context.Context, id string, rec session.InquiryRecord) error
	SaveCallback(ctx context.Context, id string, rec session.InquiryRecord) error
}

// Finalizer snapshots a completed order, attaches staged media and notifies
// both parties.
type Finalizer interface {
	Finalize(ctx context.Context, rec session.Record, totalPrice int) (session.OrderRecord, error)
}

// MediaIngestor pulls an attachment from the provider and stores it under an
// order (or staging) reference.
type MediaIngestor interface {
	Ingest(ctx context.Context, identity, mediaID, ref, kind string) error
	StagingRef(identity string) string
}

// Bridge is the human-handover side. Relay reports handled=true when the
// record belongs to an active (or stale) handover link and the engine must
// not run the step machine for this turn.
type Bridge interface {
	Relay(ctx context.Context, rec session.Record, prompt string) (session.Record, bool, error)
	Initiate(ctx context.Context, rec session.Record) (session.Record, error)
	SelectLocation(ctx context.Context, rec session.Record, prompt string) (session.Record, error)
}

// Engine advances one conversation by one inbound utterance. It owns no
// storage of the session record itself: the caller loads the record, hands it
// in, and persists whatever comes back.
type Engine struct {
	gateway   Messenger
	repo      Repository
	finalizer Finalizer
	media     MediaIngestor
	bridge    Bridge
	owner     string
	logger    *logging.Logger
	tracer    trace.Tracer
	newID     func() string
}

func NewEngine(gateway Messenger, repo Repository, finalizer Finalizer, media MediaIngestor, bridge Bridge, owner string, logger *logging.Logger) *Engine {
	if gateway == nil {
		panic("dispatcher: gateway cannot be nil")
	}
	if repo == nil {
		panic("dispatcher: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		gateway:   gateway,
		repo:      repo,
		finalizer: finalizer,
		media:     media,
		bridge:    bridge,
		owner:     owner,
		logger:    logger,
		tracer:    otel.Tracer("orderbot.internal.dispatcher"),
		newID:     uuid.NewString,
	}
}

// notifyOwner forwards a business event to the shop owner. Best effort, and
// suppressed when the owner is the one talking to the bot.
func (e *Engine) notifyOwner(ctx context.Context, identity, text string) {
	if e.owner == "" || e.owner == identity {
		return
	}
	if err := e.gateway.SendText(ctx, e.owner, text); err != nil {
		e.logger.Warn("owner notification failed", "identity", identity, "error", err)
	}
}

// HandleMessage runs one turn of the conversation and returns the updated
// record. Delivery failures are logged inside the gateway and never abort the
// turn; the returned error is reserved for storage-level failures the caller
// may want to react to.
func (e *Engine) HandleMessage(ctx context.Context, rec session.Record, text string) (session.Record, error) {
	ctx, span := e.tracer.Start(ctx, "dispatcher.handle_message",
		trace.WithAttributes(attribute.String("step", string(rec.Step))))
	defer span.End()

	prompt := strings.TrimSpace(text)

	// An active handover bypasses the step machine entirely, including
	// keyword escapes: while an agent is attached, every byte is theirs.
	if e.bridge != nil {
		next, handled, err := e.bridge.Relay(ctx, rec, prompt)
		if handled {
			return next, err
		}
	}

	if prompt == "" {
		_ = e.gateway.SendText(ctx, rec.Identity, emptyPromptMessage)
		return rec, nil
	}

	mediaID, isImage := strings.CutPrefix(prompt, imagePrefix)
	lower := strings.ToLower(prompt)

	if !isImage && isRestartKeyword(lower) {
		return e.showWelcome(ctx, rec)
	}
	if !isImage && containsAgentKeyword(lower) && e.bridge != nil &&
		rec.Step != session.StepAgentLocation && rec.Step != session.StepWaitingForAgent {
		return e.bridge.Initiate(ctx, rec)
	}

	if isImage {
		return e.handleImage(ctx, rec, strings.TrimSpace(mediaID))
	}

	switch rec.Step {
	case session.StepWelcome:
		return e.showWelcome(ctx, rec)
	case session.StepMainMenu:
		return e.handleMainMenu(ctx, rec, prompt)
	case session.StepCakeTypesMenu:
		return e.handleCakeTypesMenu(ctx, rec, prompt)
	case session.StepFreshCreamMenu:
		return e.handleFreshCreamMenu(ctx, rec, prompt)
	case session.StepTierDecision:
		return e.handleTierDecision(ctx, rec, prompt)
	case session.StepTierCakesMenu:
		return e.handleTierCakesMenu(ctx, rec, prompt)
	case session.StepTwoTierMenu:
		return e.handleTierMenu(ctx, rec, prompt, twoTierOptions, "tt_back")
	case session.StepThreeTierMenu:
		return e.handleTierMenu(ctx, rec, prompt, threeTierOptions, "ttt_back")
	case session.StepFruitCakeMenu:
		return e.handleItemMenu(ctx, rec, prompt, fruitCakeOptions, "fruit_back", "Fruit Cakes")
	case session.StepPlasticIcingMenu:
		return e.handleItemMenu(ctx, rec, prompt, plasticIcingOptions, "pi_back", "Plastic Icing Cakes")
	case session.StepOrderMenu:
		return e.handleOrderMenu(ctx, rec, prompt)
	case session.StepCheckExistingOrder:
		return e.handleCheckExistingOrder(ctx, rec, prompt)
	case session.StepOrderDecision:
		return e.handleOrderDecision(ctx, rec, prompt)
	case session.StepCollectingInfo:
		return e.handleCollectingInfo(ctx, rec, prompt)
	case session.StepChoosePayment:
		return e.handleChoosePayment(ctx, rec, prompt)
	case session.StepConfirmOrder:
		return e.handleConfirmOrder(ctx, rec, prompt)
	case session.StepAwaitingPaymentProof:
		_ = e.gateway.SendText(ctx, rec.Identity, paymentProofPromptMessage)
		return rec, nil
	case session.StepAwaitingDesignImage:
		_ = e.gateway.SendText(ctx, rec.Identity, designImagePromptMessage)
		return rec, nil
	case session.StepCupcakeInquiry:
		return e.handleCupcakeInquiry(ctx, rec, prompt)
	case session.StepPricingMenu:
		return e.handlePricingMenu(ctx, rec, prompt)
	case session.StepPricingOrderDecision:
		return e.handlePricingOrderDecision(ctx, rec, prompt)
	case session.StepContactMenu:
		return e.handleContactMenu(ctx, rec, prompt)
	case session.StepCallbackRequest:
		return e.handleCallbackRequest(ctx, rec, prompt)
	case session.StepRestartConfirmation:
		return e.handleRestartConfirmation(ctx, rec, prompt)
	case session.StepGoodbye:
		_ = e.gateway.SendText(ctx, rec.Identity, goodbyeNudgeMessage)
		return rec, nil
	case session.StepAgentLocation:
		if e.bridge != nil {
			return e.bridge.SelectLocation(ctx, rec, prompt)
		}
		return e.showWelcome(ctx, rec)
	case session.StepWaitingForAgent, session.StepAgentChat:
		// Relay did not claim the turn, so the link is gone. Reset.
		return e.showWelcome(ctx, rec)
	default:
		return e.showWelcome(ctx, rec)
	}
}

// showWelcome resets any in-flight selection, greets, and lands the
// conversation on the main menu so the next utterance picks an option.
func (e *Engine) showWelcome(ctx context.Context, rec session.Record) (session.Record, error) {
	rec.Step = session.StepMainMenu
	rec.Field = ""
	rec.SelectedItem = ""
	rec.CakeType = ""
	rec.Order = session.OrderFields{}
	_ = e.gateway.SendList(ctx, rec.Identity, welcomeMessage, mainMenuOptions)
	return rec, nil
}

// handleImage routes an attachment by the step that was waiting for it.
// Images that arrive mid-flow are staged against the eventual order so the
// finalizer can pick them up.
func (e *Engine) handleImage(ctx context.Context, rec session.Record, mediaID string) (session.Record, error) {
	if mediaID == "" || e.media == nil {
		_ = e.gateway.SendText(ctx, rec.Identity, mediaRetryMessage)
		return rec, nil
	}

	switch rec.Step {
	case session.StepAwaitingPaymentProof:
		if err := e.media.Ingest(ctx, rec.Identity, mediaID, rec.OrderRef, "payment_proof"); err != nil {
			e.logger.Warn("payment proof ingest failed", "identity", rec.Identity, "error", err)
			_ = e.gateway.SendText(ctx, rec.Identity, mediaRetryMessage)
			return rec, nil
		}
		_ = e.gateway.SendText(ctx, rec.Identity, "Payment proof received, thank you! We'll verify it shortly.")
		return e.afterPaymentProof(ctx, rec)
	case session.StepAwaitingDesignImage:
		if err := e.media.Ingest(ctx, rec.Identity, mediaID, rec.OrderRef, "design"); err != nil {
			e.logger.Warn("design image ingest failed", "identity", rec.Identity, "error", err)
			_ = e.gateway.SendText(ctx, rec.Identity, mediaRetryMessage)
			return rec, nil
		}
		_ = e.gateway.SendText(ctx, rec.Identity, "Design image received, thank you!")
		return e.askAnythingElse(ctx, rec)
	default:
		if err := e.media.Ingest(ctx, rec.Identity, mediaID, e.media.StagingRef(rec.Identity), "design"); err != nil {
			e.logger.Warn("staged image ingest failed", "identity", rec.Identity, "error", err)
			_ = e.gateway.SendText(ctx, rec.Identity, mediaRetryMessage)
			return rec, nil
		}
		_ = e.gateway.SendText(ctx, rec.Identity, "Got it! We've saved your picture for your order.")
		return e.resumeStep(ctx, rec)
	}
}

// afterPaymentProof decides what the order still needs once the proof is in.
func (e *Engine) afterPaymentProof(ctx context.Context, rec session.Record) (session.Record, error) {
	if it, ok := LookupItem(rec.SelectedItem); ok && !it.Category.SkipDesign {
		rec.Step = session.StepAwaitingDesignImage
		_ = e.gateway.SendText(ctx, rec.Identity, designImagePromptMessage)
		return rec, nil
	}
	return e.askAnythingElse(ctx, rec)
}

// resumeStep re-issues the prompt for the current step after an interruption
// such as a mid-flow image, so the customer is never left without a cue.
func (e *Engine) resumeStep(ctx context.Context, rec session.Record) (session.Record, error) {
	if rec.Step == session.StepCollectingInfo {
		return e.promptCurrentField(ctx, rec)
	}
	return rec, nil
}

// askAnythingElse is the shared tail of every completed flow.
func (e *Engine) askAnythingElse(ctx context.Context, rec session.Record) (session.Record, error) {
	rec.Step = session.StepRestartConfirmation
	_ = e.gateway.SendButtons(ctx, rec.Identity, anythingElseMessage, []whatsapp.Option{
		{ID: "restart_yes", Label: "Yes"},
		{ID: "restart_no", Label: "No"},
	})
	return rec, nil
}

func (e *Engine) handleRestartConfirmation(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	switch {
	case isAffirmative(prompt):
		return e.showWelcome(ctx, rec)
	case isNegative(prompt):
		rec.Step = session.StepGoodbye
		_ = e.gateway.SendText(ctx, rec.Identity, "Thank you for choosing Cake Fairy! 🎂 Have a sweet day!\n\n"+goodbyeNudgeMessage)
		return rec, nil
	default:
		_ = e.gateway.SendButtons(ctx, rec.Identity, anythingElseMessage, []whatsapp.Option{
			{ID: "restart_yes", Label: "Yes"},
			{ID: "restart_no", Label: "No"},
		})
		return rec, nil
	}
}
