package session

import (
	"encoding/json"
	"time"
)

// Step is the named state of one identity's conversation. The set is closed;
// decoding an unrecognized tag yields StepWelcome rather than an error.
type Step string

const (
	StepWelcome              Step = "welcome"
	StepMainMenu             Step = "main_menu"
	StepCakeTypesMenu        Step = "cake_types_menu"
	StepFreshCreamMenu       Step = "fresh_cream_menu"
	StepTierDecision         Step = "tier_decision"
	StepTierCakesMenu        Step = "tier_cakes_menu"
	StepTwoTierMenu          Step = "two_tier_menu"
	StepThreeTierMenu        Step = "three_tier_menu"
	StepFruitCakeMenu        Step = "fruit_cake_menu"
	StepPlasticIcingMenu     Step = "plastic_icing_menu"
	StepOrderMenu            Step = "order_menu"
	StepCheckExistingOrder   Step = "check_existing_order"
	StepOrderDecision        Step = "order_decision"
	StepCollectingInfo       Step = "collecting_info"
	StepChoosePayment        Step = "choose_payment"
	StepConfirmOrder         Step = "confirm_order"
	StepAwaitingPaymentProof Step = "awaiting_payment_proof"
	StepAwaitingDesignImage  Step = "awaiting_design_image"
	StepCupcakeInquiry       Step = "cupcake_inquiry"
	StepPricingMenu          Step = "pricing_menu"
	StepPricingOrderDecision Step = "pricing_order_decision"
	StepContactMenu          Step = "contact_menu"
	StepCallbackRequest      Step = "callback_request"
	StepRestartConfirmation  Step = "restart_confirmation"
	StepGoodbye              Step = "goodbye"
	StepAgentLocation        Step = "agent_location"
	StepWaitingForAgent      Step = "waiting_for_agent"
	StepAgentChat            Step = "agent_chat"
)

var knownSteps = map[Step]struct{}{
	StepWelcome: {}, StepMainMenu: {}, StepCakeTypesMenu: {},
	StepFreshCreamMenu: {}, StepTierDecision: {}, StepTierCakesMenu: {},
	StepTwoTierMenu: {}, StepThreeTierMenu: {}, StepFruitCakeMenu: {},
	StepPlasticIcingMenu: {}, StepOrderMenu: {}, StepCheckExistingOrder: {},
	StepOrderDecision: {}, StepCollectingInfo: {}, StepChoosePayment: {},
	StepConfirmOrder: {}, StepAwaitingPaymentProof: {}, StepAwaitingDesignImage: {},
	StepCupcakeInquiry: {}, StepPricingMenu: {}, StepPricingOrderDecision: {},
	StepContactMenu: {}, StepCallbackRequest: {}, StepRestartConfirmation: {},
	StepGoodbye: {}, StepAgentLocation: {}, StepWaitingForAgent: {},
	StepAgentChat: {},
}

// ParseStep maps a stored tag to a known step, routing anything unknown to
// the initial state.
func ParseStep(tag string) Step {
	s := Step(tag)
	if _, ok := knownSteps[s]; ok {
		return s
	}
	return StepWelcome
}

// UnmarshalJSON implements the decoding contract: unknown tags become the
// initial step instead of failing the whole record.
func (s *Step) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	*s = ParseStep(tag)
	return nil
}

// OrderFields is the partially-built order accumulated across turns.
// A field left empty simply has not been collected yet.
type OrderFields struct {
	Name            string   `json:"name,omitempty"`
	Contact         string   `json:"contact,omitempty"`
	Flavors         []string `json:"flavors,omitempty"`
	Filling         string   `json:"filling,omitempty"`
	Icing           string   `json:"icing,omitempty"`
	Shape           string   `json:"shape,omitempty"`
	Theme           string   `json:"theme,omitempty"`
	DueDate         string   `json:"due_date,omitempty"`
	DueTime         string   `json:"due_time,omitempty"`
	Colors          string   `json:"colors,omitempty"`
	Message         string   `json:"message,omitempty"`
	Referral        string   `json:"referral,omitempty"`
	SpecialRequests string   `json:"special_requests,omitempty"`
	CollectionPoint string   `json:"collection_point,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
}

// Record is the durable per-identity conversation state.
type Record struct {
	Identity     string      `json:"identity"`
	Step         Step        `json:"step"`
	Field        string      `json:"field,omitempty"`
	SelectedItem string      `json:"selected_item,omitempty"`
	CakeType     string      `json:"cake_type,omitempty"`
	Order        OrderFields `json:"order"`

	// Handover links. Agent is set on a customer record, Customer on an
	// operator record, while a bridge session is active.
	Agent    string `json:"agent,omitempty"`
	Customer string `json:"customer,omitempty"`
	Location string `json:"location,omitempty"`

	// OrderRef links media received before/after confirmation to an order.
	OrderRef string `json:"order_ref,omitempty"`
}

// NewRecord returns the default record for an unseen identity.
func NewRecord(identity string) Record {
	return Record{Identity: identity, Step: StepWelcome}
}

// OrderRecord is the immutable snapshot persisted at confirmation time.
// Only Status may change after creation.
type OrderRecord struct {
	Ref             string      `json:"ref"`
	Fields          OrderFields `json:"fields"`
	SelectedItem    string      `json:"selected_item"`
	CakeType        string      `json:"cake_type,omitempty"`
	TotalPrice      int         `json:"total_price,omitempty"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	DesignMediaKey  string      `json:"design_media_key,omitempty"`
	PaymentProofKey string      `json:"payment_proof_key,omitempty"`
}

// InquiryRecord covers cupcake inquiries, callback requests and agent
// requests: free text plus who sent it.
type InquiryRecord struct {
	Details   string    `json:"details"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaRecord stores the raw bytes of a received attachment.
type MediaRecord struct {
	OrderRef    string    `json:"order_ref"`
	MediaID     string    `json:"media_id"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogEntry is one line of the per-identity interaction log. Audit only;
// never read back by the dispatcher.
type LogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction string          `json:"direction"` // "in" | "out" | "state"
	Kind      string          `json:"kind"`      // "text" | "button" | "list" | "raw"
	Payload   json.RawMessage `json:"payload,omitempty"`
}
