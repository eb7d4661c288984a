package testutil

import (
	"sync"

	"gss-go/internal/gss"
)

// Notification is one recorded notification.
type Notification struct {
	Title string
	Body  string
}

// RecordingNotifier records notifications. Safe for concurrent use.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

var _ gss.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, Notification{Title: title, Body: body})
}

// Titles returns the titles of all notifications in order.
func (n *RecordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, len(n.notes))
	for i, note := range n.notes {
		titles[i] = note.Title
	}
	return titles
}
