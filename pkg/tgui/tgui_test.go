package tgui

import (
	"strings"
	"testing"
)

func TestPaginate(t *testing.T) {
	t.Parallel()
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	tests := []struct {
		page     int
		wantLen  int
		wantIdx  int
		prev     bool
		next     bool
		wantFrom int
	}{
		{page: 0, wantLen: 8, wantIdx: 0, prev: false, next: true, wantFrom: 0},
		{page: 1, wantLen: 8, wantIdx: 1, prev: true, next: true, wantFrom: 8},
		{page: 2, wantLen: 4, wantIdx: 2, prev: true, next: false, wantFrom: 16},
		{page: 9, wantLen: 4, wantIdx: 2, prev: true, next: false, wantFrom: 16},
		{page: -3, wantLen: 8, wantIdx: 0, prev: false, next: true, wantFrom: 0},
	}
	for _, tt := range tests {
		sub, p := Paginate(items, tt.page, 8)
		if len(sub) != tt.wantLen || p.Index != tt.wantIdx || p.HasPrev != tt.prev || p.HasNext != tt.next || p.From != tt.wantFrom {
			t.Fatalf("Paginate(page=%d) = len %d, %+v", tt.page, len(sub), p)
		}
		if p.Pages != 3 {
			t.Fatalf("Pages = %d, want 3", p.Pages)
		}
	}

	_, empty := Paginate([]int(nil), 0, 8)
	if empty.Label() != "Страница 1/1" || empty.HasNext || empty.HasPrev {
		t.Fatalf("empty page = %+v (%s)", empty, empty.Label())
	}
}

func TestPageNavRow(t *testing.T) {
	t.Parallel()
	_, p := Paginate(make([]int, 20), 1, 8)
	row := p.NavRow("grp", "page")
	if len(row) != 2 {
		t.Fatalf("row = %+v", row)
	}
	if row[0].Data != "grp:page:0" || row[1].Data != "grp:page:2" {
		t.Fatalf("data = %q %q", row[0].Data, row[1].Data)
	}
}

func TestCallbackData(t *testing.T) {
	t.Parallel()
	d := Data("grp", "sel", "id:42")
	scope, action, payload := ParseData(d)
	if scope != "grp" || action != "sel" || payload != "id:42" {
		t.Fatalf("ParseData(%q) = %q %q %q", d, scope, action, payload)
	}
	if _, err := CheckedData("grp", "sel", strings.Repeat("x", 70)); err != ErrCallbackDataTooLong {
		t.Fatalf("CheckedData err = %v", err)
	}
}

func TestHTMLHelpers(t *testing.T) {
	t.Parallel()
	got := JoinH(" ", B("a<b"), "", I("x&y"))
	if got != "<b>a&lt;b</b> <i>x&amp;y</i>" {
		t.Fatalf("JoinH = %q", got)
	}
	labels := []struct {
		in   string
		n    int
		want string
	}{
		{"Расписание", 4, "Рас…"},
		{"Расписание", 10, "Расписание"},
		{"  ФМ-21 \n\t(магистратура) ", 60, "ФМ-21 (магистратура)"},
		{"x", 0, ""},
	}
	for _, tt := range labels {
		if got := Label(tt.in, tt.n); got != tt.want {
			t.Fatalf("Label(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestKeyboardBuild(t *testing.T) {
	t.Parallel()
	if NewInline().Build() != nil {
		t.Fatal("empty keyboard built")
	}
	kb := NewReply().Row(TextBtn("a"), TextBtn("b")).Row().Row(TextBtn("c")).Build()
	if !kb.Reply || len(kb.Rows) != 2 || kb.Rows[1][0].Text != "c" {
		t.Fatalf("keyboard = %+v", kb)
	}
}
