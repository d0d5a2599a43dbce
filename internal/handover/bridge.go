package handover

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// imagePrefix mirrors the webhook layer's synthetic attachment utterance.
const imagePrefix = "IMAGE:"

// exitCommand ends an active chat from either side.
const exitCommand = "exit"

// Store is the session persistence the bridge needs to link and unlink
// the two sides of a chat.
type Store interface {
	Get(ctx context.Context, identity string) (session.Record, error)
	Put(ctx context.Context, identity string, rec session.Record) error
}

// Messenger delivers bridge traffic.
type Messenger interface {
	SendText(ctx context.Context, identity, text string) error
	SendList(ctx context.Context, identity, text string, options []whatsapp.Option) error
	SendImage(ctx context.Context, identity, mediaID, caption string) error
}

// Bridge connects a customer to a human operator and relays everything
// verbatim between them until one side types "exit". While a link is live
// the step machine is out of the loop entirely.
type Bridge struct {
	pools   map[string][]string
	store   Store
	gateway Messenger
	logger  *logging.Logger
	tracer  trace.Tracer
	pick    func(n int) int
}

func NewBridge(pools map[string][]string, store Store, gateway Messenger, logger *logging.Logger) *Bridge {
	if store == nil {
		panic("handover: store cannot be nil")
	}
	if gateway == nil {
		panic("handover: gateway cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bridge{
		pools:   pools,
		store:   store,
		gateway: gateway,
		logger:  logger,
		tracer:  otel.Tracer("orderbot.internal.handover"),
		pick:    rand.IntN,
	}
}

// locations returns the named pools in stable order. The unnamed pool is
// the fallback and never offered as a choice.
func (b *Bridge) locations() []string {
	locs := make([]string, 0, len(b.pools))
	for loc := range b.pools {
		if loc != "" && len(b.pools[loc]) > 0 {
			locs = append(locs, loc)
		}
	}
	sort.Strings(locs)
	return locs
}

// Initiate starts a handover for a customer. With more than one named pool
// the customer picks a location first; otherwise they are connected
// straight away.
func (b *Bridge) Initiate(ctx context.Context, rec session.Record) (session.Record, error) {
	ctx, span := b.tracer.Start(ctx, "handover.initiate")
	defer span.End()

	locs := b.locations()
	if len(locs) > 1 {
		rec.Step = session.StepAgentLocation
		options := make([]whatsapp.Option, 0, len(locs))
		for _, loc := range locs {
			options = append(options, locationOption(loc))
		}
		_ = b.gateway.SendList(ctx, rec.Identity, "Which branch would you like to speak to?", options)
		return rec, nil
	}
	loc := ""
	if len(locs) == 1 {
		loc = locs[0]
	}
	return b.connect(ctx, rec, loc)
}

// SelectLocation resolves the customer's branch choice and connects them.
func (b *Bridge) SelectLocation(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	p := strings.ToLower(strings.TrimSpace(prompt))
	locs := b.locations()
	for _, loc := range locs {
		if p == locationOption(loc).ID || (p != "" && strings.Contains(strings.ToLower(loc), p)) {
			return b.connect(ctx, rec, loc)
		}
	}
	options := make([]whatsapp.Option, 0, len(locs))
	for _, loc := range locs {
		options = append(options, locationOption(loc))
	}
	_ = b.gateway.SendList(ctx, rec.Identity, "Please pick one of our branches:", options)
	return rec, nil
}

func locationOption(loc string) whatsapp.Option {
	return whatsapp.Option{
		ID:    "loc_" + strings.ToLower(strings.ReplaceAll(loc, " ", "_")),
		Label: loc,
	}
}

// connect picks a random operator from the location's pool, links both
// records and notifies both sides.
func (b *Bridge) connect(ctx context.Context, rec session.Record, location string) (session.Record, error) {
	ctx, span := b.tracer.Start(ctx, "handover.connect")
	defer span.End()

	ops := b.pools[location]
	if len(ops) == 0 {
		ops = b.pools[""]
	}
	if len(ops) == 0 {
		b.logger.Error("no operators configured", "location", location)
		_ = b.gateway.SendText(ctx, rec.Identity,
			"Sorry, no agents are available right now. Please try again later or type 'menu' to continue.")
		rec.Step = session.StepMainMenu
		return rec, nil
	}
	operator := ops[b.pick(len(ops))]

	opRec, err := b.store.Get(ctx, operator)
	if err != nil {
		b.logger.Error("failed to load operator session", "operator", operator, "error", err)
		_ = b.gateway.SendText(ctx, rec.Identity,
			"Sorry, we couldn't reach an agent right now. Please try again in a moment.")
		return rec, nil
	}
	opRec.Step = session.StepAgentChat
	opRec.Customer = rec.Identity
	if err := b.store.Put(ctx, operator, opRec); err != nil {
		b.logger.Error("failed to link operator session", "operator", operator, "error", err)
		_ = b.gateway.SendText(ctx, rec.Identity,
			"Sorry, we couldn't reach an agent right now. Please try again in a moment.")
		return rec, nil
	}

	rec.Step = session.StepWaitingForAgent
	rec.Agent = operator
	rec.Location = location

	_ = b.gateway.SendText(ctx, operator,
		"👤 New customer chat from "+rec.Identity+describeLocation(location)+".\n"+
			"Everything you type here goes straight to them. Type 'exit' to end the chat.")
	_ = b.gateway.SendText(ctx, rec.Identity,
		"We're connecting you with one of our agents. Please hold on, they'll be with you shortly.")
	return rec, nil
}

func describeLocation(location string) string {
	if location == "" {
		return ""
	}
	return " (" + location + " branch)"
}

// Relay moves one utterance across an active link. It reports handled=false
// when the record is not part of any link, in which case the caller runs the
// normal step machine. A link whose other side has evaporated is torn down
// here rather than left to dangle.
func (b *Bridge) Relay(ctx context.Context, rec session.Record, prompt string) (session.Record, bool, error) {
	switch {
	case rec.Customer != "":
		return b.relayFromOperator(ctx, rec, prompt)
	case rec.Agent != "" && (rec.Step == session.StepWaitingForAgent || rec.Step == session.StepAgentChat):
		return b.relayFromCustomer(ctx, rec, prompt)
	default:
		return rec, false, nil
	}
}

func (b *Bridge) relayFromOperator(ctx context.Context, rec session.Record, prompt string) (session.Record, bool, error) {
	ctx, span := b.tracer.Start(ctx, "handover.relay_operator")
	defer span.End()

	custRec, err := b.store.Get(ctx, rec.Customer)
	if err != nil || custRec.Agent != rec.Identity {
		// Customer session expired or was re-linked elsewhere. Unhook.
		rec.Customer = ""
		rec.Step = session.StepMainMenu
		_ = b.gateway.SendText(ctx, rec.Identity, "That customer's session has ended. The chat is closed.")
		return rec, true, nil
	}

	if strings.EqualFold(strings.TrimSpace(prompt), exitCommand) {
		return b.teardownFromOperator(ctx, rec, custRec)
	}

	if custRec.Step == session.StepWaitingForAgent {
		custRec.Step = session.StepAgentChat
		if err := b.store.Put(ctx, rec.Customer, custRec); err != nil {
			b.logger.Error("failed to promote customer to agent chat", "customer", rec.Customer, "error", err)
		}
		_ = b.gateway.SendText(ctx, rec.Customer, "You're now chatting with one of our agents. 😊")
	}
	b.deliver(ctx, rec.Customer, prompt)
	return rec, true, nil
}

func (b *Bridge) relayFromCustomer(ctx context.Context, rec session.Record, prompt string) (session.Record, bool, error) {
	ctx, span := b.tracer.Start(ctx, "handover.relay_customer")
	defer span.End()

	opRec, err := b.store.Get(ctx, rec.Agent)
	if err != nil || opRec.Customer != rec.Identity {
		// The operator side is gone or talking to someone else; reset the
		// customer back to the bot rather than swallowing their messages.
		rec.Agent = ""
		rec.Location = ""
		rec.Step = session.StepMainMenu
		_ = b.gateway.SendText(ctx, rec.Identity,
			"The agent chat has ended. Type 'menu' to see our options again.")
		return rec, true, nil
	}

	if strings.EqualFold(strings.TrimSpace(prompt), exitCommand) {
		return b.teardownFromCustomer(ctx, rec, opRec)
	}

	b.deliver(ctx, rec.Agent, prompt)
	return rec, true, nil
}

// deliver forwards a relayed utterance, preserving attachments by media
// reference instead of flattening them to text.
func (b *Bridge) deliver(ctx context.Context, to, prompt string) {
	if mediaID, ok := strings.CutPrefix(prompt, imagePrefix); ok {
		if err := b.gateway.SendImage(ctx, to, strings.TrimSpace(mediaID), ""); err != nil {
			b.logger.Error("failed to relay image", "to", to, "error", err)
		}
		return
	}
	if err := b.gateway.SendText(ctx, to, prompt); err != nil {
		b.logger.Error("failed to relay message", "to", to, "error", err)
	}
}

func (b *Bridge) teardownFromOperator(ctx context.Context, opRec, custRec session.Record) (session.Record, bool, error) {
	custRec.Agent = ""
	custRec.Location = ""
	custRec.Step = session.StepMainMenu
	if err := b.store.Put(ctx, custRec.Identity, custRec); err != nil {
		b.logger.Error("failed to unlink customer", "customer", custRec.Identity, "error", err)
	}
	_ = b.gateway.SendText(ctx, custRec.Identity,
		"The agent has ended the chat. Type 'menu' any time to see our options again.")

	opRec.Customer = ""
	opRec.Step = session.StepMainMenu
	_ = b.gateway.SendText(ctx, opRec.Identity, "Chat closed. ✅")
	return opRec, true, nil
}

func (b *Bridge) teardownFromCustomer(ctx context.Context, custRec, opRec session.Record) (session.Record, bool, error) {
	opRec.Customer = ""
	opRec.Step = session.StepMainMenu
	if err := b.store.Put(ctx, opRec.Identity, opRec); err != nil {
		b.logger.Error("failed to unlink operator", "operator", opRec.Identity, "error", err)
	}
	_ = b.gateway.SendText(ctx, opRec.Identity, "The customer has left the chat.")

	custRec.Agent = ""
	custRec.Location = ""
	custRec.Step = session.StepMainMenu
	_ = b.gateway.SendText(ctx, custRec.Identity,
		"You've left the agent chat. Type 'menu' to see our options again.")
	return custRec, true, nil
}
