// Package line talks to the chat channel's messaging API: reply and push
// sends, profile lookup, and the message shapes those calls accept.
package line

// Channel limits for quick replies and reply batches.
const (
	maxQuickReplyItems = 13
	maxLabelRunes      = 20
	maxDisplayRunes    = 300

	// A reply that exceeds what the channel accepts is degraded to plain
	// text capped at this budget.
	fallbackBudgetRunes = 1800
)

type Action struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data"`
	DisplayText string `json:"displayText,omitempty"`
}

type QuickReplyItem struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type TextMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

type FlexMessage struct {
	Type     string `json:"type"`
	AltText  string `json:"altText"`
	Contents any    `json:"contents"`
}

func NewText(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// NewQuickReplyText builds a text message with tappable options. Items past
// the channel's cap are dropped.
func NewQuickReplyText(text string, items []QuickReplyItem) TextMessage {
	if len(items) > maxQuickReplyItems {
		items = items[:maxQuickReplyItems]
	}
	msg := NewText(text)
	if len(items) > 0 {
		msg.QuickReply = &QuickReply{Items: items}
	}
	return msg
}

// PostbackItem builds one quick-reply option. The label is truncated to the
// channel's button limit; the full text survives in the display field.
func PostbackItem(label, data string) QuickReplyItem {
	return QuickReplyItem{
		Type: "action",
		Action: Action{
			Type:        "postback",
			Label:       truncateRunes(label, maxLabelRunes),
			Data:        data,
			DisplayText: truncateRunes(label, maxDisplayRunes),
		},
	}
}

// ReportBubble renders the rich report card: small avatar, display name,
// survey title and the report body.
func ReportBubble(displayName, pictureURL, title, report string) FlexMessage {
	return FlexMessage{
		Type:    "flex",
		AltText: "Your \"" + title + "\" results are ready",
		Contents: map[string]any{
			"type": "bubble",
			"size": "mega",
			"body": map[string]any{
				"type":    "box",
				"layout":  "vertical",
				"spacing": "md",
				"contents": []any{
					map[string]any{
						"type":    "box",
						"layout":  "horizontal",
						"spacing": "md",
						"contents": []any{
							map[string]any{
								"type":         "image",
								"url":          pictureURL,
								"size":         "xs",
								"aspectMode":   "cover",
								"aspectRatio":  "1:1",
								"cornerRadius": "999px",
							},
							map[string]any{
								"type":    "box",
								"layout":  "vertical",
								"spacing": "xs",
								"flex":    1,
								"contents": []any{
									map[string]any{"type": "text", "text": displayName, "weight": "bold", "size": "md", "wrap": true},
									map[string]any{"type": "text", "text": title, "size": "sm", "color": "#666666", "wrap": true},
								},
							},
						},
					},
					map[string]any{"type": "separator"},
					map[string]any{"type": "text", "text": report, "size": "sm", "wrap": true},
				},
			},
		},
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
