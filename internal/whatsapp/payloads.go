package whatsapp

// Option is one selectable entry of an interactive message: a stable id and
// the label shown to the user. Menus declare these and the dispatcher matches
// against them, so the same pair travels the whole round trip.
type Option struct {
	ID    string
	Label string
}

// Transport payload limits imposed by the WhatsApp Cloud API.
const (
	MaxBodyLength        = 1024
	MaxButtonTitleLength = 20
	MaxButtons           = 3
	MaxListRows          = 10
	MaxRowTitleLength    = 24
	MaxRowDescLength     = 48
	MaxHeaderLength      = 60
	MaxFooterLength      = 60
	TextChunkSize        = 3000
)

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type,omitempty"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             *textBody `json:"text,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactiveMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Interactive      interactive `json:"interactive"`
}

type interactive struct {
	Type   string             `json:"type"`
	Header *interactiveHeader `json:"header,omitempty"`
	Body   textBody           `json:"body"`
	Footer *textBody          `json:"footer,omitempty"`
	Action interactiveAction  `json:"action"`
}

type interactiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons  []buttonItem  `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type buttonItem struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type imageMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Image            imageRef `json:"image"`
}

type imageRef struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type mediaLookupResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	ID       string `json:"id"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
