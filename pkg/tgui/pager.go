package tgui

import (
	"fmt"
	"strconv"

	"schedulebot/internal/transport"
)

const (
	prevLabel = "◀️ Назад"
	nextLabel = "Далее ▶️"
)

// Page describes one page of a list. Index is 0-based.
type Page struct {
	Index   int
	Pages   int
	From    int
	To      int
	HasPrev bool
	HasNext bool
}

// Paginate clamps page into range and returns the items on it.
func Paginate[T any](items []T, page, size int) ([]T, Page) {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := max(1, (total+size-1)/size)
	page = min(max(page, 0), pages-1)

	from := min(page*size, total)
	to := min(from+size, total)
	return items[from:to], Page{
		Index:   page,
		Pages:   pages,
		From:    from,
		To:      to,
		HasPrev: page > 0,
		HasNext: to < total,
	}
}

// Label renders "Страница x/y".
func (p Page) Label() string {
	return fmt.Sprintf("Страница %d/%d", p.Index+1, max(p.Pages, 1))
}

// NavRow returns prev/next buttons whose data is Data(scope, action, page).
func (p Page) NavRow(scope, action string) []transport.Button {
	var row []transport.Button
	if p.HasPrev {
		row = append(row, Btn(prevLabel, Data(scope, action, strconv.Itoa(p.Index-1))))
	}
	if p.HasNext {
		row = append(row, Btn(nextLabel, Data(scope, action, strconv.Itoa(p.Index+1))))
	}
	return row
}
