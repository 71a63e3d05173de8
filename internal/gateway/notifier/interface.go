package notifier

import "context"

// TextNotifier defines a minimal text notification interface.
// Different components depend on it without importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
