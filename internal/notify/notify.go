// Package notify decouples the sync core from any presentation mechanism.
// The core reports outcomes through a Notifier; the CLI injects its
// colored UI, tests inject Nop or a recorder.
package notify

// Notifier receives transient user-facing messages. Implementations must
// not block.
type Notifier interface {
	Success(format string, args ...any)
	Error(format string, args ...any)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Success(string, ...any) {}
func (Nop) Error(string, ...any)   {}
