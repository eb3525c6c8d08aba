package tgui

import "schedulebot/internal/transport"

// Keyboard accumulates rows of buttons.
type Keyboard struct {
	rows  [][]transport.Button
	reply bool
}

// NewInline starts an inline keyboard attached to a message.
func NewInline() *Keyboard { return &Keyboard{} }

// NewReply starts a persistent reply keyboard.
func NewReply() *Keyboard { return &Keyboard{reply: true} }

// Row appends a row. Empty rows are ignored.
func (k *Keyboard) Row(btn ...transport.Button) *Keyboard {
	if len(btn) > 0 {
		k.rows = append(k.rows, btn)
	}
	return k
}

// Len reports the number of rows.
func (k *Keyboard) Len() int { return len(k.rows) }

// Build returns the transport keyboard, nil when there are no rows.
func (k *Keyboard) Build() *transport.Keyboard {
	if len(k.rows) == 0 {
		return nil
	}
	return &transport.Keyboard{Rows: k.rows, Reply: k.reply}
}

// Btn creates a callback button with raw callback data.
func Btn(text, data string) transport.Button { return transport.Button{Text: text, Data: data} }

// URLBtn creates a link button.
func URLBtn(text, url string) transport.Button { return transport.Button{Text: text, URL: url} }

// TextBtn creates a reply keyboard button.
func TextBtn(text string) transport.Button { return transport.Button{Text: text} }

// Column puts every button on its own row.
func Column(buttons []transport.Button) *Keyboard {
	k := NewInline()
	for _, b := range buttons {
		k.Row(b)
	}
	return k
}
