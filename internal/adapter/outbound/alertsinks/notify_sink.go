package alertsinks

import (
	"encoding/base64"
	"log/slog"
	"os/exec"
	"regexp"
	"unicode/utf16"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
)

const maxNotificationMessageLen = 200

var notifySafeChars = regexp.MustCompile(`[^a-zA-Z0-9 .,!?:/()_-]`)

// NotifySink raises an out-of-process OS notification for CRITICAL alerts
// only — everything below that severity is too frequent to interrupt the
// operator. The message is stripped to a conservative character set and
// truncated before it ever reaches a shell-adjacent command, since it
// originates from unsanitized agent-controlled content.
type NotifySink struct {
	log *slog.Logger
}

// NewNotifySink returns a ready-to-use NotifySink.
func NewNotifySink(log *slog.Logger) *NotifySink {
	if log == nil {
		log = slog.Default()
	}
	return &NotifySink{log: log}
}

// Accept raises a toast for CRITICAL alerts; other severities are ignored.
func (s *NotifySink) Accept(a alert.Alert) {
	if a.Severity != alert.Critical {
		return
	}

	message := sanitizeForNotification(a.Message)
	script := toastScript("CrabPot", message)
	encoded := encodePowerShellCommand(script)

	cmd := exec.Command("powershell.exe", "-NoProfile", "-EncodedCommand", encoded)
	if err := cmd.Start(); err != nil {
		// Not running under a host with powershell.exe on PATH (e.g. plain
		// Linux without WSL interop) — this is expected, not an error.
		s.log.Debug("os notification unavailable", "error", err)
		return
	}
	go cmd.Wait()
}

// sanitizeForNotification strips message to a conservative printable
// character set and truncates it, since it may echo agent-controlled
// content into a command passed to an external process.
func sanitizeForNotification(message string) string {
	cleaned := notifySafeChars.ReplaceAllString(message, "")
	if len(cleaned) > maxNotificationMessageLen {
		cleaned = cleaned[:maxNotificationMessageLen]
	}
	return cleaned
}

func toastScript(title, message string) string {
	return "[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null; " +
		"$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02); " +
		"$text = $template.GetElementsByTagName('text'); " +
		"$text.Item(0).AppendChild($template.CreateTextNode('" + title + "')) > $null; " +
		"$text.Item(1).AppendChild($template.CreateTextNode('" + message + "')) > $null; " +
		"$toast = [Windows.UI.Notifications.ToastNotification]::new($template); " +
		"[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('CrabPot').Show($toast);"
}

// encodePowerShellCommand base64-encodes script as UTF-16LE, the form
// powershell.exe -EncodedCommand requires.
func encodePowerShellCommand(script string) string {
	utf16Units := utf16.Encode([]rune(script))
	buf := make([]byte, len(utf16Units)*2)
	for i, u := range utf16Units {
		buf[i*2] = byte(u)
		buf[i*2+1] = byte(u >> 8)
	}
	return base64.StdEncoding.EncodeToString(buf)
}
