package output

import (
	"fmt"
	"io"
	"os"
)

// Notifier surfaces short user-visible notices, the CLI analog of the
// plugin's toast messages. Failures are signaled through return values;
// notices are the only user-facing side channel.
type Notifier interface {
	Notify(msg string)
}

type writerNotifier struct {
	w io.Writer
}

// NewNotifier returns a Notifier that writes notices to stderr.
func NewNotifier() Notifier {
	return &writerNotifier{w: os.Stderr}
}

// NewNotifierTo returns a Notifier writing to w (for testing).
func NewNotifierTo(w io.Writer) Notifier {
	return &writerNotifier{w: w}
}

func (n *writerNotifier) Notify(msg string) {
	fmt.Fprintln(n.w, msg)
}
