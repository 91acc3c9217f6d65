package transport

import (
	"context"
	"fmt"
	"strings"
)

// Event is one inbound message, button press or deep-link entry from the
// chat platform, normalized for the router.
type Event struct {
	SenderID int64
	ChatID   int64

	Text         string
	PhotoRef     string // platform file reference for the largest photo, if any
	CallbackData string // inline button payload, if the event is a button press
	DeepLinkArg  string // start parameter carried by a deep link entry
	ReplyToID    int64  // platform message id this event replies to, if any

	// Advisory display data about the sender.
	FirstName string
	LastName  string
	Handle    string
}

// Command splits a leading bot command off the event text, e.g.
// "/start owner_42" → ("start", "owner_42"). Returns "" when the text is
// not a command.
func (e Event) Command() (cmd, arg string) {
	text := strings.TrimSpace(e.Text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	parts := strings.SplitN(text, " ", 2)
	cmd = strings.TrimPrefix(parts[0], "/")
	// Strip @BotName suffixes used in group chats.
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return strings.ToLower(cmd), arg
}

// Button is one inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Label string
	Data  string
	URL   string
}

// SendOpts carries optional message decoration.
type SendOpts struct {
	Buttons  [][]Button
	Markdown bool
}

// DeliveryError wraps a failed outbound send. Delivery failures are
// reported to the initiating sender and swallowed, never retried inline.
type DeliveryError struct {
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to chat %d failed: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sender is the outbound half of the chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, opts *SendOpts) error
	SendDocument(ctx context.Context, chatID int64, data []byte, filename, caption string) error
}
