package gss

// Notifier surfaces user-visible progress and failures.
type Notifier interface {
	Notify(title, body string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}
