package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"snapdl/pkg/models"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=snapdl", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends desktop notifications about new downloads
type Notifier struct {
	sender  NotificationSender
	enabled bool
}

// NewNotifier picks the sender of the current platform. Platforms without a
// sender get a notifier that does nothing.
func NewNotifier(enabled bool) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{sender: sender, enabled: enabled}
}

// NewNotifierWithSender is used by tests and custom integrations
func NewNotifierWithSender(sender NotificationSender, enabled bool) *Notifier {
	return &Notifier{sender: sender, enabled: enabled}
}

// NotifyPass announces the accounts of a pass that produced new media. It
// returns false when nothing was sent.
func (n *Notifier) NotifyPass(summaries []models.PassSummary) bool {
	if !n.enabled || n.sender == nil {
		return false
	}

	total := 0
	var accounts []string
	for _, s := range summaries {
		if s.Downloaded > 0 {
			total += s.Downloaded
			accounts = append(accounts, s.Account)
		}
	}
	if total == 0 {
		return false
	}

	msg := fmt.Sprintf("%d new items from %s", total, JoinAccounts(accounts, 3))
	// notifications are best effort
	return n.sender.Send("snapdl", msg) == nil
}
