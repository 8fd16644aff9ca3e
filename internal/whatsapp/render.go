package whatsapp

import (
	"fmt"

	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/choice"
)

// Cloud API limits for interactive messages.
const (
	maxButtons     = 3
	maxButtonTitle = 20
	maxRows        = 10
	maxRowTitle    = 24
	maxListButton  = 20
)

const (
	singlePrompt   = "Choose an option:"
	multiPrompt    = "Choose one or more options:"
	listButtonText = "Options"
	backTitle      = "Back"
	emptyText      = "There are no options to choose from."
	selectedMark   = "✓ "
	submitFallback = "✓"
)

// Render turns a view into the messages that show it:
//
//   - text mode: the text placeholder with a Back button
//   - searchable with nothing visible: the search placeholder as plain text
//   - single choice with up to three items: reply buttons
//   - anything else: a list, selected rows marked, followed by a submit
//     button when a multiple-choice selection exists
func Render(to string, v choice.View) []SendMessageRequest {
	if v.Mode == choice.ModeText {
		return []SendMessageRequest{buttonsMessage(to, v.TextPlaceholder, []Button{
			replyButton(bot.BackReplyID, backTitle),
		})}
	}

	if len(v.Items) == 0 {
		if v.Search != nil {
			return []SendMessageRequest{textMessage(to, v.Search.Placeholder)}
		}
		return []SendMessageRequest{textMessage(to, emptyText)}
	}

	if !v.MultipleChoice && len(v.Items) <= maxButtons {
		buttons := make([]Button, len(v.Items))
		for i, it := range v.Items {
			buttons[i] = replyButton(bot.ItemReplyID(it.ID), title(it))
		}
		return []SendMessageRequest{buttonsMessage(to, singlePrompt, buttons)}
	}

	prompt := singlePrompt
	if v.MultipleChoice {
		prompt = multiPrompt
	}
	if v.Search != nil && len(v.Items) > maxRows {
		prompt += "\n" + v.Search.Placeholder
	}

	rows := make([]SectionRow, 0, min(len(v.Items), maxRows))
	for _, it := range v.Items[:min(len(v.Items), maxRows)] {
		t := title(it)
		if it.Selected {
			t = selectedMark + t
		}
		rows = append(rows, SectionRow{ID: bot.ItemReplyID(it.ID), Title: truncate(t, maxRowTitle)})
	}
	list := listMessage(to, prompt, truncate(listButtonText, maxListButton), []Section{{Title: truncate(listButtonText, maxRowTitle), Rows: rows}})
	if len(v.Items) > maxRows {
		list.Interactive.Footer = &InteractiveBody{Text: fmt.Sprintf("%d of %d shown", maxRows, len(v.Items))}
	}
	msgs := []SendMessageRequest{list}

	if v.CanSubmit {
		label := v.SubmitLabel
		if label == "" {
			label = submitFallback
		}
		body := fmt.Sprintf("%d selected", v.SelectedCount)
		msgs = append(msgs, buttonsMessage(to, body, []Button{replyButton(bot.SubmitReplyID, label)}))
	}
	return msgs
}

// title is the item label, or its id when the item has no label, since the
// API rejects empty titles.
func title(it choice.ViewItem) string {
	if it.Label == "" {
		return it.ID
	}
	return it.Label
}

func replyButton(id, title string) Button {
	return Button{Type: "reply", Reply: ButtonReply{ID: id, Title: truncate(title, maxButtonTitle)}}
}

func textMessage(to, body string) SendMessageRequest {
	return SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &SendText{Body: body},
	}
}

func buttonsMessage(to, body string, buttons []Button) SendMessageRequest {
	return SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type:   "button",
			Body:   InteractiveBody{Text: body},
			Action: InteractiveAction{Buttons: buttons},
		},
	}
}

func listMessage(to, body, buttonText string, sections []Section) SendMessageRequest {
	return SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: &Interactive{
			Type: "list",
			Body: InteractiveBody{Text: body},
			Action: InteractiveAction{
				Button:   buttonText,
				Sections: sections,
			},
		},
	}
}

// truncate shortens s to at most n runes, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
