package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	kit "schedulebot/internal/transport"
)

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("Расписание", 10, "HTML")
	if len(got) != 1 || got[0] != "Расписание" {
		t.Fatalf("split = %q", got)
	}
}

func TestSplitTelegramTextPrefersNewline(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("а", 30) + "\n" + strings.Repeat("б", 30)
	got := splitTelegramText(text, 40, "")
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2 (%q)", len(got), got)
	}
	if got[0] != strings.Repeat("а", 30) || got[1] != strings.Repeat("б", 30) {
		t.Fatalf("split = %q", got)
	}
}

func TestSplitTelegramTextKeepsTagsWhole(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 38) + "<b>bold</b>" + strings.Repeat("y", 20)
	got := splitTelegramText(text, 40, "HTML")
	for _, c := range got {
		if utf8.RuneCountInString(c) > 40 {
			t.Fatalf("chunk over limit: %q", c)
		}
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk splits a tag: %q", c)
		}
	}
	if got[0] != strings.Repeat("x", 38) {
		t.Fatalf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != text {
		t.Fatalf("rejoined = %q", strings.Join(got, ""))
	}
}

func TestMarkup(t *testing.T) {
	t.Parallel()
	if markup(nil) != nil {
		t.Fatal("nil keyboard produced markup")
	}
	inline := markup(&kit.Keyboard{Rows: [][]kit.Button{{{Text: "a", Data: "grp:sel:1"}}}})
	if len(inline.InlineKeyboard) != 1 || inline.InlineKeyboard[0][0].Data != "grp:sel:1" {
		t.Fatalf("inline = %+v", inline.InlineKeyboard)
	}
	reply := markup(&kit.Keyboard{Reply: true, Rows: [][]kit.Button{{{Text: "📌 Сегодня"}, {Text: "📅 Неделя"}}}})
	if !reply.ResizeKeyboard || len(reply.ReplyKeyboard[0]) != 2 || reply.ReplyKeyboard[0][1].Text != "📅 Неделя" {
		t.Fatalf("reply = %+v", reply.ReplyKeyboard)
	}
}
