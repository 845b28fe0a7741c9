package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Loading is a one-line status indicator. It redraws in place, so it only
// makes sense on a terminal.
type Loading struct {
	mu    sync.Mutex
	w     io.Writer
	shown int
}

func NewLoading(w io.Writer) *Loading { return &Loading{w: w} }

// Show replaces the indicator text. An empty text shows "Loading...".
func (l *Loading) Show(text string) {
	if l == nil || l.w == nil {
		return
	}
	if text == "" {
		text = "Loading..."
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
	fmt.Fprint(l.w, text)
	l.shown = len([]rune(text))
}

// Hide erases the indicator.
func (l *Loading) Hide() {
	if l == nil || l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
}

func (l *Loading) clear() {
	if l.shown == 0 {
		return
	}
	fmt.Fprint(l.w, "\r"+strings.Repeat(" ", l.shown)+"\r")
	l.shown = 0
}
