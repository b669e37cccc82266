package notifier

// TextNotifier defines a minimal text notification interface.
// Components depend on it rather than on a concrete channel such as Telegram.
type TextNotifier interface {
	SendText(text string) error
}
