package gss

// Logger provides structured logging for the domain layer.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// componentLogger tags every record with a component name.
type componentLogger struct {
	l    Logger
	name string
}

// WithComponent returns a Logger that adds component=name to every record.
func WithComponent(l Logger, name string) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return &componentLogger{l: l, name: name}
}

func (c *componentLogger) Debug(msg string, args ...any) { c.l.Debug(msg, c.with(args)...) }
func (c *componentLogger) Info(msg string, args ...any)  { c.l.Info(msg, c.with(args)...) }
func (c *componentLogger) Warn(msg string, args ...any)  { c.l.Warn(msg, c.with(args)...) }
func (c *componentLogger) Error(msg string, args ...any) { c.l.Error(msg, c.with(args)...) }

func (c *componentLogger) with(args []any) []any {
	return append([]any{"component", c.name}, args...)
}
