package dispatcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cakefairy/whatsapp-orderbot/internal/session"
	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
)

var tierDecisionOptions = []whatsapp.Option{
	{ID: "td_single", Label: "Single Tier"},
	{ID: "td_tiered", Label: "View Tier Options"},
}

var pricingMenuOptions = []whatsapp.Option{
	{ID: "pricing_fresh_cream", Label: "Fresh Cream Cakes"},
	{ID: "pricing_fruit", Label: "Fruit Cakes"},
	{ID: "pricing_plastic_icing", Label: "Plastic Icing Cakes"},
	{ID: "pricing_back", Label: "Back to main menu"},
}

func (e *Engine) handleMainMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, mainMenuOptions)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, welcomeMessage, mainMenuOptions)
		return rec, nil
	}

	switch opt.ID {
	case "main_cakes":
		return e.showCakeTypes(ctx, rec)
	case "main_cupcakes":
		rec.Step = session.StepCupcakeInquiry
		_ = e.gateway.SendText(ctx, rec.Identity, cupcakePromptMessage)
		return rec, nil
	case "main_order":
		rec.Step = session.StepOrderMenu
		_ = e.gateway.SendButtons(ctx, rec.Identity, "What would you like to do?", orderMenuOptions)
		return rec, nil
	case "main_pricing":
		rec.Step = session.StepPricingMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "Which pricing would you like to see?", pricingMenuOptions)
		return rec, nil
	case "main_contact":
		rec.Step = session.StepContactMenu
		_ = e.gateway.SendButtons(ctx, rec.Identity, "How would you like to get in touch?", contactMenuOptions)
		return rec, nil
	case "main_agent":
		if e.bridge != nil {
			return e.bridge.Initiate(ctx, rec)
		}
		_ = e.gateway.SendText(ctx, rec.Identity, directContactMessage)
		return rec, nil
	}
	return rec, nil
}

func (e *Engine) showCakeTypes(ctx context.Context, rec session.Record) (session.Record, error) {
	rec.Step = session.StepCakeTypesMenu
	_ = e.gateway.SendList(ctx, rec.Identity, "Which type of cake are you interested in?", cakeTypeOptions)
	return rec, nil
}

func (e *Engine) handleCakeTypesMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, cakeTypeOptions)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, "Which type of cake are you interested in?", cakeTypeOptions)
		return rec, nil
	}

	switch opt.ID {
	case "cake_fresh_cream":
		rec.Step = session.StepFreshCreamMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "🍰 *Fresh Cream Cakes* 🍰\n\nAll fresh cream cakes come with fresh cream filling.", freshCreamOptions)
	case "cake_fruit":
		rec.Step = session.StepFruitCakeMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "🍇 *Fruit Cakes* 🍇\n\nRich traditional fruit cakes.", fruitCakeOptions)
	case "cake_plastic_icing":
		rec.Step = session.StepPlasticIcingMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "🎨 *Plastic Icing Cakes* 🎨\n\nSmooth fondant-finished cakes for detailed designs.", plasticIcingOptions)
	case "cake_back":
		return e.showWelcome(ctx, rec)
	}
	return rec, nil
}

func (e *Engine) handleFreshCreamMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, freshCreamOptions)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, "🍰 *Fresh Cream Cakes* 🍰", freshCreamOptions)
		return rec, nil
	}
	if opt.ID == "fc_back" {
		return e.showCakeTypes(ctx, rec)
	}

	it := itemsByID[opt.ID]
	if it.Tierable {
		rec.Step = session.StepTierDecision
		rec.SelectedItem = it.ID
		rec.CakeType = it.Category.Name
		_ = e.gateway.SendButtons(ctx, rec.Identity,
			"Would you like the "+it.Label+" as a single tier, or would you like to see our tiered cakes?",
			tierDecisionOptions)
		return rec, nil
	}
	return e.startOrderDecision(ctx, rec, it)
}

func (e *Engine) handleTierDecision(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, tierDecisionOptions)
	if !ok {
		_ = e.gateway.SendButtons(ctx, rec.Identity, invalidSelectionMessage, tierDecisionOptions)
		return rec, nil
	}
	if opt.ID == "td_tiered" {
		rec.Step = session.StepTierCakesMenu
		_ = e.gateway.SendButtons(ctx, rec.Identity, "How many tiers would you like?", tierCakesOptions)
		return rec, nil
	}
	it, ok := LookupItem(rec.SelectedItem)
	if !ok {
		return e.showCakeTypes(ctx, rec)
	}
	return e.startOrderDecision(ctx, rec, it)
}

func (e *Engine) handleTierCakesMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, tierCakesOptions)
	if !ok {
		_ = e.gateway.SendButtons(ctx, rec.Identity, invalidSelectionMessage, tierCakesOptions)
		return rec, nil
	}
	switch opt.ID {
	case "tier_two":
		rec.Step = session.StepTwoTierMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "🎂 *2 Tier Cakes - Fresh Cream* 🎂", twoTierOptions)
	case "tier_three":
		rec.Step = session.StepThreeTierMenu
		_ = e.gateway.SendList(ctx, rec.Identity, "🎂 *3 Tier Cakes - Fresh Cream* 🎂", threeTierOptions)
	case "tier_back":
		return e.showCakeTypes(ctx, rec)
	}
	return rec, nil
}

// handleTierMenu covers both the two- and three-tier lists. Add-on rows are
// informational; picking one does not change the selected cake.
func (e *Engine) handleTierMenu(ctx context.Context, rec session.Record, prompt string, options []whatsapp.Option, backID string) (session.Record, error) {
	opt, ok := matchOption(prompt, options)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, "🎂 *Tiered Cakes* 🎂", options)
		return rec, nil
	}
	if opt.ID == backID {
		rec.Step = session.StepTierCakesMenu
		_ = e.gateway.SendButtons(ctx, rec.Identity, "How many tiers would you like?", tierCakesOptions)
		return rec, nil
	}
	if strings.HasSuffix(opt.ID, "_fondant") || strings.HasSuffix(opt.ID, "_ganache") || strings.HasSuffix(opt.ID, "_smbc") {
		_ = e.gateway.SendText(ctx, rec.Identity,
			opt.Label+" can be added to any tiered cake. Mention it under special requests when you order.")
		_ = e.gateway.SendList(ctx, rec.Identity, "🎂 *Tiered Cakes* 🎂", options)
		return rec, nil
	}
	return e.startOrderDecision(ctx, rec, itemsByID[opt.ID])
}

func (e *Engine) handleItemMenu(ctx context.Context, rec session.Record, prompt string, options []whatsapp.Option, backID, title string) (session.Record, error) {
	opt, ok := matchOption(prompt, options)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, title, options)
		return rec, nil
	}
	if opt.ID == backID {
		return e.showCakeTypes(ctx, rec)
	}
	return e.startOrderDecision(ctx, rec, itemsByID[opt.ID])
}

func (e *Engine) handleOrderMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, orderMenuOptions)
	if !ok {
		_ = e.gateway.SendButtons(ctx, rec.Identity, invalidSelectionMessage, orderMenuOptions)
		return rec, nil
	}
	switch opt.ID {
	case "order_new":
		return e.showCakeTypes(ctx, rec)
	case "order_existing":
		rec.Step = session.StepCheckExistingOrder
		_ = e.gateway.SendText(ctx, rec.Identity, existingOrderPromptMessage)
		return rec, nil
	case "order_back":
		return e.showWelcome(ctx, rec)
	}
	return rec, nil
}

func (e *Engine) handleCheckExistingOrder(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	order, err := e.repo.GetOrder(ctx, prompt)
	if errors.Is(err, session.ErrOrderNotFound) {
		order, err = e.repo.FindOrderByPhone(ctx, session.Normalize(prompt))
	}
	if errors.Is(err, session.ErrOrderNotFound) {
		_ = e.gateway.SendText(ctx, rec.Identity, orderNotFoundMessage)
		return rec, nil
	}
	if err != nil {
		e.logger.Error("order lookup failed", "identity", rec.Identity, "error", err)
		_ = e.gateway.SendText(ctx, rec.Identity, apologyMessage)
		return rec, nil
	}

	var sb strings.Builder
	sb.WriteString("📋 *Your Order* 📋\n\n")
	sb.WriteString("Order number: " + order.Ref + "\n")
	if it, ok := LookupItem(order.SelectedItem); ok {
		sb.WriteString("Cake: " + it.Label + "\n")
	}
	sb.WriteString("Status: " + order.Status + "\n")
	if order.Fields.DueDate != "" {
		sb.WriteString("Due: " + order.Fields.DueDate)
		if order.Fields.DueTime != "" {
			sb.WriteString(" " + order.Fields.DueTime)
		}
		sb.WriteString("\n")
	}
	_ = e.gateway.SendText(ctx, rec.Identity, sb.String())
	return e.askAnythingElse(ctx, rec)
}

func (e *Engine) handlePricingMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, pricingMenuOptions)
	if !ok {
		_ = e.gateway.SendText(ctx, rec.Identity, invalidSelectionMessage)
		_ = e.gateway.SendList(ctx, rec.Identity, "Which pricing would you like to see?", pricingMenuOptions)
		return rec, nil
	}

	var body string
	switch opt.ID {
	case "pricing_fresh_cream":
		body = pricingFreshCream
	case "pricing_fruit":
		body = pricingFruit
	case "pricing_plastic_icing":
		body = pricingPlasticIcing
	case "pricing_back":
		return e.showWelcome(ctx, rec)
	}

	_ = e.gateway.SendText(ctx, rec.Identity, body)
	rec.Step = session.StepPricingOrderDecision
	_ = e.gateway.SendButtons(ctx, rec.Identity, "Would you like to place an order?", []whatsapp.Option{
		{ID: "pricing_order_yes", Label: "Yes"},
		{ID: "pricing_order_no", Label: "No"},
	})
	return rec, nil
}

func (e *Engine) handlePricingOrderDecision(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	switch {
	case isAffirmative(prompt):
		return e.showCakeTypes(ctx, rec)
	case isNegative(prompt):
		return e.askAnythingElse(ctx, rec)
	default:
		_ = e.gateway.SendButtons(ctx, rec.Identity, "Would you like to place an order?", []whatsapp.Option{
			{ID: "pricing_order_yes", Label: "Yes"},
			{ID: "pricing_order_no", Label: "No"},
		})
		return rec, nil
	}
}

func (e *Engine) handleContactMenu(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	opt, ok := matchOption(prompt, contactMenuOptions)
	if !ok {
		_ = e.gateway.SendButtons(ctx, rec.Identity, invalidSelectionMessage, contactMenuOptions)
		return rec, nil
	}
	switch opt.ID {
	case "contact_callback":
		rec.Step = session.StepCallbackRequest
		_ = e.gateway.SendText(ctx, rec.Identity, callbackPromptMessage)
		return rec, nil
	case "contact_direct":
		_ = e.gateway.SendText(ctx, rec.Identity, directContactMessage)
		return e.askAnythingElse(ctx, rec)
	case "contact_back":
		return e.showWelcome(ctx, rec)
	}
	return rec, nil
}

func (e *Engine) handleCallbackRequest(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	err := e.repo.SaveCallback(ctx, e.newID(), session.InquiryRecord{
		Details:   prompt,
		Identity:  rec.Identity,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("failed to save callback request", "identity", rec.Identity, "error", err)
		_ = e.gateway.SendText(ctx, rec.Identity, apologyMessage)
		return rec, nil
	}
	e.notifyOwner(ctx, rec.Identity,
		"📞 *NEW CALLBACK REQUEST* 📞\n\nFrom: "+rec.Identity+"\nDetails: "+prompt)
	_ = e.gateway.SendText(ctx, rec.Identity, callbackThanksMessage)
	return e.askAnythingElse(ctx, rec)
}

func (e *Engine) handleCupcakeInquiry(ctx context.Context, rec session.Record, prompt string) (session.Record, error) {
	err := e.repo.SaveInquiry(ctx, e.newID(), session.InquiryRecord{
		Details:   prompt,
		Identity:  rec.Identity,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("failed to save cupcake inquiry", "identity", rec.Identity, "error", err)
		_ = e.gateway.SendText(ctx, rec.Identity, apologyMessage)
		return rec, nil
	}
	e.notifyOwner(ctx, rec.Identity,
		"🧁 *NEW CUPCAKE INQUIRY* 🧁\n\nFrom: "+rec.Identity+"\nDetails: "+prompt)
	_ = e.gateway.SendText(ctx, rec.Identity, cupcakeThanksMessage)
	return e.askAnythingElse(ctx, rec)
}
