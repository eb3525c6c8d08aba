package transport

import (
	"context"
	"errors"
)

// ErrRecipientGone is returned by adapters when the recipient blocked the bot
// or the chat no longer exists. Callers use it to drop subscriptions.
var ErrRecipientGone = errors.New("transport: recipient unavailable")

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsPrivate    bool
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one keyboard button. Data is used by inline keyboards, URL opens a
// link, and a reply keyboard only looks at Text.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is a transport neutral keyboard layout.
type Keyboard struct {
	Rows [][]Button
	// Reply selects a persistent reply keyboard instead of inline buttons.
	Reply bool
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       *Keyboard
}

// Document is a file attachment sent alongside an optional caption.
type Document struct {
	FileName string
	MIME     string
	Data     []byte
	Caption  string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	SendDocument(ctx context.Context, to ChatTarget, doc Document, opt *SendOptions) (MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update the platform command menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
