package router

import (
	"context"
	"time"

	kit "schedulebot/internal/transport"
	logx "schedulebot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

// Command is a slash command. Name is the word after '/', without the bot
// username suffix.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access
	// Hidden keeps the command out of the Telegram menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute handles inline button data "scope:action:payload".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

// Request is one routed update.
type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	// Text is the full message text, trimmed.
	Text string
	// Payload is the callback payload.
	Payload   string
	MessageID int
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// IsCallback reports whether the request came from an inline button.
func (r *Request) IsCallback() bool { return r.Update.Kind == kit.UpdateCallback }

// Reply sends HTML text to the request's chat.
func (r *Request) Reply(ctx context.Context, text string, kb *kit.Keyboard) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		Keyboard:       kb,
	})
	return err
}

// Edit replaces the message that carried the pressed button. Outside a
// callback it falls back to Reply.
func (r *Request) Edit(ctx context.Context, text string, kb *kit.Keyboard) error {
	if !r.IsCallback() || r.MessageID == 0 {
		return r.Reply(ctx, text, kb)
	}
	return r.Adapter.EditText(ctx, kit.MessageRef{ChatID: r.Chat.ChatID, MessageID: r.MessageID}, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		Keyboard:       kb,
	})
}
