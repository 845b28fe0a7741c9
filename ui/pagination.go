// Package ui holds the terminal-side presentation helpers of the client:
// pagination controls, toast notifications, forms, debouncing and the book
// list renderers.
package ui

import (
	"fmt"
	"io"
	"strings"
)

// windowRadius is how many pages are shown on each side of the current one.
const windowRadius = 2

// ItemKind tells the parts of a pagination bar apart.
type ItemKind int

const (
	ItemPrev ItemKind = iota
	ItemPage
	ItemEllipsis
	ItemNext
)

// Item is one control of the pagination bar. Page is the page a click
// targets; it is zero for ellipses.
type Item struct {
	Kind     ItemKind
	Page     int
	Active   bool
	Disabled bool
}

// Window returns the page numbers around current, with the first and last
// page pinned at the edges and ellipses over the gaps.
func Window(current, total int) []Item {
	if total < 1 {
		return nil
	}
	start := max(1, current-windowRadius)
	end := min(total, current+windowRadius)

	var items []Item
	if start > 1 {
		items = append(items, Item{Kind: ItemPage, Page: 1})
		if start > 2 {
			items = append(items, Item{Kind: ItemEllipsis, Disabled: true})
		}
	}
	for i := start; i <= end; i++ {
		items = append(items, Item{Kind: ItemPage, Page: i, Active: i == current})
	}
	if end < total {
		if end < total-1 {
			items = append(items, Item{Kind: ItemEllipsis, Disabled: true})
		}
		items = append(items, Item{Kind: ItemPage, Page: total})
	}
	return items
}

// Controls is Window framed by Previous and Next. A listing with a single
// page (or none) gets no controls at all.
func Controls(current, total int) []Item {
	if total <= 1 {
		return nil
	}
	items := []Item{{Kind: ItemPrev, Page: current - 1, Disabled: current == 1}}
	items = append(items, Window(current, total)...)
	return append(items, Item{Kind: ItemNext, Page: current + 1, Disabled: current == total})
}

// Pager binds the controls of a listing to a page-change callback.
type Pager struct {
	Current int
	Total   int
	OnPage  func(page int)
}

// Items returns the controls for the pager's state.
func (p *Pager) Items() []Item { return Controls(p.Current, p.Total) }

// Click handles a click on a control targeting page. The callback only runs
// for a page other than the current one inside [1, Total]; Click reports
// whether it ran.
func (p *Pager) Click(page int) bool {
	if page < 1 || page > p.Total || page == p.Current {
		return false
	}
	if p.OnPage != nil {
		p.OnPage(page)
	}
	return true
}

// Next and Prev are keyboard shortcuts for the neighbouring controls.
func (p *Pager) Next() bool { return p.Click(p.Current + 1) }
func (p *Pager) Prev() bool { return p.Click(p.Current - 1) }

// RenderPagination writes the controls on one line, e.g.
//
//	‹ Prev  1 … 4 5 [6] 7 8 … 20  Next ›
//
// Disabled arrows are dropped. Nothing is written when there are no controls.
func RenderPagination(w io.Writer, current, total int) error {
	items := Controls(current, total)
	if len(items) == 0 {
		return nil
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case ItemPrev:
			if !it.Disabled {
				parts = append(parts, "‹ Prev ")
			}
		case ItemNext:
			if !it.Disabled {
				parts = append(parts, " Next ›")
			}
		case ItemEllipsis:
			parts = append(parts, "…")
		case ItemPage:
			if it.Active {
				parts = append(parts, fmt.Sprintf("[%d]", it.Page))
			} else {
				parts = append(parts, fmt.Sprintf("%d", it.Page))
			}
		}
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}
