package webhook

import "strings"

// Kind identifies one command from the fixed chat vocabulary.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindSimulate
	KindStatus
	KindWait
	KindBypass
	KindClose
	KindApprove
	KindDeny
)

func (k Kind) String() string {
	switch k {
	case KindHelp:
		return "help"
	case KindSimulate:
		return "simulate"
	case KindStatus:
		return "status"
	case KindWait:
		return "wait"
	case KindBypass:
		return "bypass"
	case KindClose:
		return "close"
	case KindApprove:
		return "approve"
	case KindDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// RequiresArg reports whether the command needs a booking ID prefix.
func (k Kind) RequiresArg() bool {
	switch k {
	case KindWait, KindBypass, KindClose, KindApprove, KindDeny:
		return true
	default:
		return false
	}
}

// Command is the typed result of classifying an inbound message.
type Command struct {
	Kind Kind
	Arg  string // booking ID prefix, if any
	Raw  string // trimmed original text, for the "not recognized" reply
}

// InboundPayload mirrors the chat provider's webhook body. Only the fields
// the classifier consumes are declared.
type InboundPayload struct {
	TypeWebhook string `json:"typeWebhook"`
	SenderData  struct {
		ChatID string `json:"chatId"`
	} `json:"senderData"`
	MessageData struct {
		TextMessageData struct {
			TextMessage string `json:"textMessage"`
		} `json:"textMessageData"`
	} `json:"messageData"`
}

var vocabulary = map[string]Kind{
	"commands":         KindHelp,
	"help":             KindHelp,
	"elaview-simulate": KindSimulate,
	"elaview-status":   KindStatus,
	"wait":             KindWait,
	"bypass":           KindBypass,
	"close":            KindClose,
	"approve":          KindApprove,
	"deny":             KindDeny,
}

// Classify inspects an inbound webhook payload and extracts a command.
// The second return is false when the event should be ignored: wrong
// webhook type or no text body. Pure function of the payload.
func Classify(p *InboundPayload) (Command, bool) {
	switch p.TypeWebhook {
	case "incomingMessageReceived", "outgoingMessageReceived":
	default:
		return Command{}, false
	}

	text := strings.TrimSpace(p.MessageData.TextMessageData.TextMessage)
	if text == "" {
		return Command{}, false
	}

	fields := strings.Fields(text)
	kind := vocabulary[strings.ToLower(fields[0])]

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	return Command{Kind: kind, Arg: arg, Raw: text}, true
}
