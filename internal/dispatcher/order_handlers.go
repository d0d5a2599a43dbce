package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
)

// orderField is one stop of the collection cursor. The cursor key is stored
// on the session record so the flow survives restarts mid-question.
type orderField struct {
	Key    string
	Prompt string
}

const (
	fieldName            = "name"
	fieldContact         = "contact"
	fieldFlavors         = "flavors"
	fieldFilling         = "filling"
	fieldIcing           = "icing"
	fieldShape           = "shape"
	fieldTheme           = "theme"
	fieldDueDate         = "due_date"
	fieldDueTime         = "due_time"
	fieldColors          = "colors"
	fieldMessage         = "message"
	fieldReferral        = "referral"
	fieldSpecialRequests = "special_requests"
	fieldCollection      = "collection_point"
)

var baseOrderFields = []orderField{
	{fieldName, "Great, let's get your order started! What name should we put on the order?"},
	{fieldContact, "What's the best contact number for this order?"},
	{fieldFlavors, ""}, // prompt built per item, see flavorPrompt
	{fieldFilling, "What filling would you like? Fresh cream is our default."},
	{fieldIcing, "What icing would you like? Fresh cream is our default."},
	{fieldShape, "What shape would you like? (round, square, heart, number...)"},
	{fieldTheme, "What theme or occasion is the cake for?"},
	{fieldDueDate, "What date do you need the cake for? (e.g. 25 December)"},
	{fieldDueTime, "What time would you like to collect it?"},
	{fieldColors, "What colors would you like?\n\n" + darkColorsNote + "\n*Note:* Gold and black colors attract a $5 surcharge."},
	{fieldMessage, "What message should we write on the cake? (type 'none' for no message)"},
	{fieldReferral, "How did you hear about us?"},
	{fieldSpecialRequests, "Any special requests? (type 'none' if not)"},
	{fieldCollection, "Where would you like to collect your cake?"},
}

var fruitSkippedFields = map[string]struct{}{
	fieldTheme: {}, fieldMessage: {}, fieldSpecialRequests: {},
}

// fieldsFor returns the collection sequence for an item. Categories that
// skip decoration drop the decorative questions entirely.
func fieldsFor(it Item) []orderField {
	if !it.Category.SkipTheme {
		return baseOrderFields
	}
	fields := make([]orderField, 0, len(baseOrderFields))
	for _, f := range baseOrderFields {
		if _, skip := fruitSkippedFields[f.Key]; skip {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func flavorPrompt(it Item) string {
	if it.FlavorCount <= 1 {
		return "What flavour would you like?"
	}
	return fmt.Sprintf("Please list your %d flavours, separated by commas (e.g. chocolate, vanilla).", it.FlavorCount)
}

func fieldPrompt(it Item, f orderField) string {
	if f.Key == fieldFlavors {
		return flavorPrompt(it)
	}
	return f.Prompt
}

// startOrderDecision records the browsed item and asks whether to order it.
func (e *Engine) startOrderDecision(ctx context.Context, rec session.Record, it Item) (session.Record, error) {
	rec.Step = session.StepOrderDecision
	rec.SelectedItem = it.ID
	rec.CakeType = it.Category.Name
	_ = e.gateway.SendButtons(ctx, rec.Identity,
		"Would you like to order the "+it.Label+"?", []whatsapp.Option{
			{ID: "order_yes", Label: "Yes, order it"},
			{ID: "order_no", Label: "No, go back"},
		})
	return rec, nil
}

func (e *Engine) handleOrderDecision(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	it, found := LookupItem(rec.SelectedItem)
	if !found {
		return e.showCakeTypes(ctx, rec)
	}
	switch {
	case isAffirmative(prompt):
		rec.Step = session.StepCollectingInfo
		rec.Order = session.OrderFields{}
		fields := fieldsFor(it)
		rec.Field = fields[0].Key
		_ = e.gateway.SendText(ctx, rec.Identity, fieldPrompt(it, fields[0]))
		return rec, nil
	case isNegative(prompt):
		return e.showCakeTypes(ctx, rec)
	default:
		_ = e.gateway.SendButtons(ctx, rec.Identity,
			"Would you like to order the "+it.Label+"?", []whatsapp.Option{
				{ID: "order_yes", Label: "Yes, order it"},
				{ID: "order_no", Label: "No, go back"},
			})
		return rec, nil
	}
}

// promptCurrentField re-asks the question the cursor is parked on.
func (e *Engine) promptCurrentField(ctx context.Context, rec session.Record) (session.Record, error) {
	it, found := LookupItem(rec.SelectedItem)
	if !found {
		return e.showCakeTypes(ctx, rec)
	}
	for _, f := range fieldsFor(it) {
		if f.Key == rec.Field {
			_ = e.gateway.SendText(ctx, rec.Identity, fieldPrompt(it, f))
			return rec, nil
		}
	}
	return e.showCakeTypes(ctx, rec)
}

func (e *Engine) handleCollectingInfo(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	it, found := LookupItem(rec.SelectedItem)
	if !found {
		return e.showCakeTypes(ctx, rec)
	}
	fields := fieldsFor(it)
	idx := -1
	for i, f := range fields {
		if f.Key == rec.Field {
			idx = i
			break
		}
	}
	if idx < 0 {
		rec.Field = fields[0].Key
		_ = e.gateway.SendText(ctx, rec.Identity, fieldPrompt(it, fields[0]))
		return rec, nil
	}

	if fields[idx].Key == fieldFlavors {
		flavors := splitFlavors(prompt)
		if len(flavors) < it.FlavorCount {
			_ = e.gateway.SendText(ctx, rec.Identity, fmt.Sprintf(
				"The %s needs %d flavours and you've listed %d. %s",
				it.Label, it.FlavorCount, len(flavors), flavorPrompt(it)))
			return rec, nil
		}
		if len(flavors) > it.FlavorCount {
			flavors = flavors[:it.FlavorCount]
		}
		rec.Order.Flavors = flavors
	} else {
		setOrderField(&rec.Order, fields[idx].Key, prompt)
	}

	if idx+1 < len(fields) {
		rec.Field = fields[idx+1].Key
		_ = e.gateway.SendText(ctx, rec.Identity, fieldPrompt(it, fields[idx+1]))
		return rec, nil
	}

	rec.Field = ""
	rec.Step = session.StepChoosePayment
	_ = e.gateway.SendList(ctx, rec.Identity, "How would you like to pay?", paymentOptions)
	return rec, nil
}

func splitFlavors(prompt string) []string {
	parts := strings.Split(prompt, ",")
	flavors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			flavors = append(flavors, p)
		}
	}
	return flavors
}

func setOrderField(o *session.OrderFields, key, value string) {
	switch key {
	case fieldName:
		o.Name = value
	case fieldContact:
		o.Contact = session.Normalize(value)
	case fieldFilling:
		o.Filling = value
	case fieldIcing:
		o.Icing = value
	case fieldShape:
		o.Shape = value
	case fieldTheme:
		o.Theme = value
	case fieldDueDate:
		o.DueDate = value
	case fieldDueTime:
		o.DueTime = value
	case fieldColors:
		o.Colors = value
	case fieldMessage:
		o.Message = value
	case fieldReferral:
		o.Referral = value
	case fieldSpecialRequests:
		o.SpecialRequests = value
	case fieldCollection:
		o.CollectionPoint = value
	}
}

func (e *Engine) handleChoosePayment(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	if opt, ok := matchOption(prompt, paymentOptions); ok {
		rec.Order.PaymentMethod = opt.Label
	} else {
		// Free-text payment answers are accepted verbatim so a typed
		// "ecocash please" never dead-ends the flow.
		rec.Order.PaymentMethod = strings.TrimSpace(prompt)
	}
	rec.Step = session.StepConfirmOrder
	_ = e.gateway.SendText(ctx, rec.Identity, orderSummary(rec))
	_ = e.gateway.SendButtons(ctx, rec.Identity, "Shall I place this order?", []whatsapp.Option{
		{ID: "confirm_yes", Label: "Yes, place order"},
		{ID: "confirm_no", Label: "No, cancel"},
	})
	return rec, nil
}

// totalFor prices the in-flight order: catalog price plus the restricted
// color surcharge.
func totalFor(rec session.Record) int {
	it, ok := LookupItem(rec.SelectedItem)
	if !ok {
		return 0
	}
	return it.Price + ColorSurcharge(rec.Order.Colors)
}

func orderSummary(rec session.Record) string {
	var sb strings.Builder
	sb.WriteString("📋 *Order Summary* 📋\n\n")
	if it, ok := LookupItem(rec.SelectedItem); ok {
		sb.WriteString("Cake: " + it.Label + "\n")
	}
	if rec.CakeType != "" {
		sb.WriteString("Type: " + rec.CakeType + "\n")
	}
	o := rec.Order
	if len(o.Flavors) > 0 {
		sb.WriteString("Flavours: " + strings.Join(o.Flavors, ", ") + "\n")
	}
	if o.Filling != "" {
		sb.WriteString("Filling: " + o.Filling + "\n")
	}
	if o.Icing != "" {
		sb.WriteString("Icing: " + o.Icing + "\n")
	}
	if o.Name != "" {
		sb.WriteString("Name: " + o.Name + "\n")
	}
	if o.Contact != "" {
		sb.WriteString("Contact: " + o.Contact + "\n")
	}
	if o.Shape != "" {
		sb.WriteString("Shape: " + o.Shape + "\n")
	}
	if o.Theme != "" {
		sb.WriteString("Theme: " + o.Theme + "\n")
	}
	if o.DueDate != "" {
		sb.WriteString("Due: " + o.DueDate)
		if o.DueTime != "" {
			sb.WriteString(" at " + o.DueTime)
		}
		sb.WriteString("\n")
	}
	if o.Colors != "" {
		sb.WriteString("Colors: " + o.Colors + "\n")
		if ColorSurcharge(o.Colors) > 0 {
			sb.WriteString(fmt.Sprintf("Color surcharge: $%d\n", ColorSurcharge(o.Colors)))
		}
	}
	if o.Message != "" {
		sb.WriteString("Message: " + o.Message + "\n")
	}
	if o.SpecialRequests != "" {
		sb.WriteString("Special requests: " + o.SpecialRequests + "\n")
	}
	if o.CollectionPoint != "" {
		sb.WriteString("Collection: " + o.CollectionPoint + "\n")
	}
	if o.PaymentMethod != "" {
		sb.WriteString("Payment: " + o.PaymentMethod + "\n")
	}
	sb.WriteString(fmt.Sprintf("\n*Total: $%d*", totalFor(rec)))
	return sb.String()
}

func (e *Engine) handleConfirmOrder(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	it, found := LookupItem(rec.SelectedItem)
	if !found {
		return e.showCakeTypes(ctx, rec)
	}
	switch {
	case isAffirmative(prompt):
		if e.finalizer == nil {
			_ = e.gateway.SendText(ctx, rec.Identity, apologyMessage)
			return rec, nil
		}
		order, err := e.finalizer.Finalize(ctx, rec, totalFor(rec))
		if err != nil {
			e.logger.Error("order finalization failed", "identity", rec.Identity, "error", err)
			_ = e.gateway.SendText(ctx, rec.Identity, apologyMessage)
			return rec, nil
		}
		rec.OrderRef = order.Ref
		_ = e.gateway.SendText(ctx, rec.Identity,
			"🎉 Your order has been placed! Your order number is *"+order.Ref+"*.\n"+
				"Keep it safe; you can use it to check on your order any time.")

		if !strings.EqualFold(rec.Order.PaymentMethod, payOnCollectionLabel) {
			rec.Step = session.StepAwaitingPaymentProof
			_ = e.gateway.SendText(ctx, rec.Identity, paymentProofPromptMessage)
			return rec, nil
		}
		if !it.Category.SkipDesign {
			rec.Step = session.StepAwaitingDesignImage
			_ = e.gateway.SendText(ctx, rec.Identity, designImagePromptMessage)
			return rec, nil
		}
		return e.askAnythingElse(ctx, rec)
	case isNegative(prompt):
		_ = e.gateway.SendText(ctx, rec.Identity, "No problem, nothing has been placed.")
		return e.showWelcome(ctx, rec)
	default:
		_ = e.gateway.SendButtons(ctx, rec.Identity, "Shall I place this order?", []whatsapp.Option{
			{ID: "confirm_yes", Label: "Yes, place order"},
			{ID: "confirm_no", Label: "No, cancel"},
		})
		return rec, nil
	}
}
