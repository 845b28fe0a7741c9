package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultToastDuration is how long a toast stays up unless told otherwise.
const DefaultToastDuration = 5 * time.Second

// Severity picks the icon and title of a toast.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Title is the capitalised severity shown in the toast header.
func (s Severity) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

func (s Severity) icon() string {
	switch s {
	case SeveritySuccess:
		return "✔"
	case SeverityError:
		return "✖"
	case SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

// ToastState is a step of a toast's life:
// Created → Displayed → AutoHidden | Dismissed → Removed.
type ToastState int

const (
	ToastCreated ToastState = iota
	ToastDisplayed
	ToastAutoHidden
	ToastDismissed
	ToastRemoved
)

func (s ToastState) String() string {
	switch s {
	case ToastCreated:
		return "created"
	case ToastDisplayed:
		return "displayed"
	case ToastAutoHidden:
		return "auto-hidden"
	case ToastDismissed:
		return "dismissed"
	case ToastRemoved:
		return "removed"
	}
	return fmt.Sprintf("ToastState(%d)", int(s))
}

// Toast is a transient message.
type Toast struct {
	ID       string
	Severity Severity
	Message  string
	Duration time.Duration
	Shown    time.Time
}

type toastEntry struct {
	toast Toast
	state ToastState
	timer *time.Timer
}

// Notifier is the toast container. It writes each toast to its writer when
// shown and tracks it until it is hidden, either by its timer or by Dismiss.
// A nil *Notifier accepts every call and does nothing.
type Notifier struct {
	// OnRemove, when set, runs once per toast after it left the container.
	// cause is ToastAutoHidden or ToastDismissed.
	OnRemove func(t Toast, cause ToastState)

	mu       sync.Mutex
	w        io.Writer
	duration time.Duration
	toasts   map[string]*toastEntry
	closed   bool
}

// NewNotifier writes toasts to w. duration <= 0 means DefaultToastDuration.
func NewNotifier(w io.Writer, duration time.Duration) *Notifier {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &Notifier{w: w, duration: duration, toasts: make(map[string]*toastEntry)}
}

func newToastID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "toast-" + id.String()
}

// Show displays message and arms its auto-hide timer. duration <= 0 uses the
// notifier's default. It returns the toast id, empty when nothing was shown.
func (n *Notifier) Show(message string, severity Severity, duration time.Duration) string {
	if n == nil || n.w == nil {
		return ""
	}
	if duration <= 0 {
		duration = n.duration
	}
	e := &toastEntry{
		toast: Toast{ID: newToastID(), Severity: severity, Message: message, Duration: duration},
		state: ToastCreated,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ""
	}
	fmt.Fprintf(n.w, "%s %s: %s\n", severity.icon(), severity.Title(), message)
	e.toast.Shown = time.Now()
	e.state = ToastDisplayed
	n.toasts[e.toast.ID] = e
	id := e.toast.ID
	e.timer = time.AfterFunc(duration, func() { n.hide(id, ToastAutoHidden) })
	return id
}

func (n *Notifier) Success(message string) string { return n.Show(message, SeveritySuccess, 0) }
func (n *Notifier) Error(message string) string   { return n.Show(message, SeverityError, 0) }
func (n *Notifier) Warning(message string) string { return n.Show(message, SeverityWarning, 0) }
func (n *Notifier) Info(message string) string    { return n.Show(message, SeverityInfo, 0) }

// Dismiss hides the toast before its timer fires. It reports false when the
// toast is unknown or already hidden.
func (n *Notifier) Dismiss(id string) bool {
	if n == nil {
		return false
	}
	return n.hide(id, ToastDismissed)
}

// hide moves a displayed toast through cause to Removed. A toast is hidden
// at most once, whichever path gets there first.
func (n *Notifier) hide(id string, cause ToastState) bool {
	n.mu.Lock()
	e, ok := n.toasts[id]
	if !ok || e.state != ToastDisplayed {
		n.mu.Unlock()
		return false
	}
	e.state = cause
	e.timer.Stop()
	delete(n.toasts, id)
	e.state = ToastRemoved
	onRemove := n.OnRemove
	n.mu.Unlock()

	if onRemove != nil {
		onRemove(e.toast, cause)
	}
	return true
}

// State returns the state of a toast still in the container.
func (n *Notifier) State(id string) (ToastState, bool) {
	if n == nil {
		return ToastRemoved, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.toasts[id]
	if !ok {
		return ToastRemoved, false
	}
	return e.state, true
}

// Active returns the displayed toasts, oldest first.
func (n *Notifier) Active() []Toast {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	out := make([]Toast, 0, len(n.toasts))
	for _, e := range n.toasts {
		out = append(out, e.toast)
	}
	n.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Shown.Before(out[j].Shown) })
	return out
}

// Close stops every pending timer and drops the toasts without running
// OnRemove. Later Show calls are ignored.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, e := range n.toasts {
		e.timer.Stop()
		delete(n.toasts, id)
	}
	n.closed = true
}
