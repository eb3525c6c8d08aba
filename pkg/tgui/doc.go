// Package tgui holds small chat UI helpers: escaped HTML fragments, keyboard
// builders, compact callback data, and list paging.
//
// Keyboards are built as transport.Keyboard so the bot logic never touches
// the Telegram SDK types; the adapter converts them on send.
package tgui
