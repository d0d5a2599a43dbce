package dispatcher

import (
	"strings"

	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
)

// Menu option ids are stable: they ride out in interactive payloads and
// come back in button/list replies, so renaming one is a wire change.
var mainMenuOptions = []whatsapp.Option{
	{ID: "main_cakes", Label: "View Cake Options"},
	{ID: "main_cupcakes", Label: "Cupcakes"},
	{ID: "main_order", Label: "Place an Order"},
	{ID: "main_pricing", Label: "Pricing Information"},
	{ID: "main_contact", Label: "Contact Us"},
	{ID: "main_agent", Label: "Speak to an Agent"},
}

var cakeTypeOptions = []whatsapp.Option{
	{ID: "cake_fresh_cream", Label: "Fresh Cream Cakes"},
	{ID: "cake_fruit", Label: "Fruit Cakes"},
	{ID: "cake_plastic_icing", Label: "Plastic Icing Cakes"},
	{ID: "cake_back", Label: "Back to main menu"},
}

var freshCreamOptions = append(itemOptions(
	"fc_cake_fairy", "fc_double_delite", "fc_triple_delite",
	"fc_small_6", "fc_large_8", "fc_large_10", "fc_xl_12", "fc_extra_tall_7",
), whatsapp.Option{ID: "fc_back", Label: "Back to cake types"})

var tierCakesOptions = []whatsapp.Option{
	{ID: "tier_two", Label: "2 Tier Cakes - Fresh Cream"},
	{ID: "tier_three", Label: "3 Tier Cakes - Fresh Cream"},
	{ID: "tier_back", Label: "Back to cake types"},
}

var twoTierOptions = append(itemOptions(
	"tt_4_6", "tt_5_7", "tt_6_8", "tt_7_9", "tt_8_10",
), []whatsapp.Option{
	{ID: "tt_fondant", Label: "Fondant Additional - $20"},
	{ID: "tt_ganache", Label: "Ganache Additional - $10"},
	{ID: "tt_smbc", Label: "SMBC Additional - $15"},
	{ID: "tt_back", Label: "Back to tier options"},
}...)

var threeTierOptions = append(itemOptions(
	"ttt_4_6_8", "ttt_5_7_9", "ttt_6_8_10",
), []whatsapp.Option{
	{ID: "ttt_fondant", Label: "Fondant Additional - $20"},
	{ID: "ttt_ganache", Label: "Ganache Additional - $10"},
	{ID: "ttt_smbc", Label: "SMBC Additional - $15"},
	{ID: "ttt_back", Label: "Back to tier options"},
}...)

var fruitCakeOptions = append(itemOptions(
	"fruit_6", "fruit_8",
), whatsapp.Option{ID: "fruit_back", Label: "Back to cake types"})

var plasticIcingOptions = append(itemOptions(
	"pi_small", "pi_medium", "pi_large", "pi_xl",
), whatsapp.Option{ID: "pi_back", Label: "Back to cake types"})

var orderMenuOptions = []whatsapp.Option{
	{ID: "order_new", Label: "Start New Order"},
	{ID: "order_existing", Label: "Check Existing Order"},
	{ID: "order_back", Label: "Back to main menu"},
}

var contactMenuOptions = []whatsapp.Option{
	{ID: "contact_callback", Label: "Request a call back"},
	{ID: "contact_direct", Label: "Direct contact information"},
	{ID: "contact_back", Label: "Back to main menu"},
}

var paymentOptions = []whatsapp.Option{
	{ID: "pay_ecocash", Label: "Ecocash"},
	{ID: "pay_innbucks", Label: "InnBucks"},
	{ID: "pay_omari", Label: "Omari"},
	{ID: "pay_on_collection", Label: "Pay on Collection"},
}

const payOnCollectionLabel = "Pay on Collection"

// matchOption resolves an utterance against a menu using case-insensitive
// substring containment over labels, falling back to exact id match so a
// transport-issued reply id and the typed label land on the same option.
// First declared match wins; declaration order is the tiebreaker.
func matchOption(prompt string, options []whatsapp.Option) (whatsapp.Option, bool) {
	p := strings.ToLower(strings.TrimSpace(prompt))
	if p == "" {
		return whatsapp.Option{}, false
	}
	for _, opt := range options {
		if p == strings.ToLower(opt.ID) || strings.Contains(strings.ToLower(opt.Label), p) {
			return opt, true
		}
	}
	return whatsapp.Option{}, false
}

// Confirmation vocabulary for leaf yes/no states. Button reply ids ending
// in _yes/_no count as their respective answers.
func isAffirmative(prompt string) bool {
	switch strings.ToLower(strings.TrimSpace(prompt)) {
	case "yes", "y", "ok", "sure", "yeah", "yep":
		return true
	}
	return strings.HasSuffix(strings.ToLower(prompt), "_yes")
}

func isNegative(prompt string) bool {
	switch strings.ToLower(strings.TrimSpace(prompt)) {
	case "no", "n", "nope", "nah":
		return true
	}
	return strings.HasSuffix(strings.ToLower(prompt), "_no")
}

// Escape-hatch keyword sets. Restart requires an exact match after
// trimming and lowering; the agent set matches on containment anywhere in
// the utterance.
var restartKeywords = map[string]struct{}{
	"restart": {}, "start over": {}, "main menu": {}, "menu": {},
	"hi": {}, "hie": {}, "hey": {},
}

var agentKeywords = []string{"agent", "human", "representative", "speak to someone"}

func isRestartKeyword(lower string) bool {
	_, ok := restartKeywords[lower]
	return ok
}

func containsAgentKeyword(lower string) bool {
	for _, kw := range agentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
