package whatsapp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/bot"
)

// MessageHandler is called for each incoming message with the sender's phone
// number, the message id and the parsed reply.
type MessageHandler func(phone, messageID string, in bot.Inbound)

type WebhookHandler struct {
	verifyToken string
	onMessage   MessageHandler
	log         zerolog.Logger
}

func NewWebhookHandler(verifyToken string, onMessage MessageHandler, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		onMessage:   onMessage,
		log:         log.With().Str("component", "webhook").Logger(),
	}
}

// HandleVerify handles the GET webhook verification from Meta.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/get-started#webhook-verification
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleIncoming processes incoming webhook POST notifications. Meta retries
// anything but a 200, so undecodable payloads are logged and acknowledged.
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	var payload WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Warn().Err(err).Msg("failed to decode payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				in, ok := ParseInbound(msg)
				if !ok {
					h.log.Debug().Str("type", msg.Type).Str("id", msg.ID).Msg("ignoring message")
					continue
				}
				h.onMessage(msg.From, msg.ID, in)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

// ParseInbound extracts the reply carried by a text, button or list message.
func ParseInbound(msg Message) (bot.Inbound, bool) {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return bot.Inbound{Text: msg.Text.Body}, true
		}
	case "interactive":
		if msg.Interactive == nil {
			return bot.Inbound{}, false
		}
		switch msg.Interactive.Type {
		case "button_reply":
			if r := msg.Interactive.ButtonReply; r != nil {
				return bot.Inbound{ReplyID: r.ID, Text: r.Title}, true
			}
		case "list_reply":
			if r := msg.Interactive.ListReply; r != nil {
				return bot.Inbound{ReplyID: r.ID, Text: r.Title}, true
			}
		}
	}
	return bot.Inbound{}, false
}
