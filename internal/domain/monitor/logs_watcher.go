package monitor

import (
	"context"
	"regexp"

	"github.com/crabpot-sandbox/crabpot/internal/domain/alert"
	"github.com/crabpot-sandbox/crabpot/internal/domain/runtime"
)

// logPattern is a single ordered entry in the log scanner's table: the
// first pattern to match a line wins.
type logPattern struct {
	re          *regexp.Regexp
	severity    alert.Severity
	description string
}

// logPatterns mirrors the reference implementation's LOG_PATTERNS table in
// its order; the first match short-circuits the rest, so a WARNING entry
// listed earlier wins over a CRITICAL entry listed later.
var logPatterns = []logPattern{
	{regexp.MustCompile(`(?i)\b(curl|wget|fetch|http\.get|axios|request)\b.*(?:\bhttps?://)`), alert.Critical, "outbound HTTP call attempted"},
	{regexp.MustCompile(`(?i)\b(eval|exec|system|popen|subprocess|child_process\.exec)\b`), alert.Critical, "dynamic code execution detected"},
	{regexp.MustCompile(`(?i)\b(apt|apt-get|pip|npm|yarn)\b\s+install\b`), alert.Critical, "package installation attempted"},
	{regexp.MustCompile(`(?i)\b(chmod|chown|chgrp)\b.*\b\+[rwxs]\b`), alert.Warning, "permission change attempted"},
	{regexp.MustCompile(`(?i)\b(base64|xxd|openssl)\b.*\b(decode|enc)\b`), alert.Warning, "encoding/decoding tool usage"},
	{regexp.MustCompile(`(?i)\b(env|printenv|set)\b.*\b(KEY|SECRET|TOKEN|PASSWORD)\b`), alert.Critical, "environment variable enumeration"},
	{regexp.MustCompile(`(?i)/etc/(passwd|shadow|hosts|resolv)`), alert.Critical, "sensitive file access attempted"},
	{regexp.MustCompile(`(?i)\b(whoami|hostname|ifconfig|ip\s+addr|uname)\b`), alert.Warning, "system reconnaissance detected"},
	{regexp.MustCompile(`(?i)\b(ERROR|FATAL|CRITICAL)\b`), alert.Warning, "error detected in logs"},
	{regexp.MustCompile(`(?i)\b(panic|segfault|core dump)\b`), alert.Warning, "crash pattern in logs"},
	{regexp.MustCompile(`(?i)\b(injection|unauthorized|forbidden)\b`), alert.Warning, "security pattern in logs"},
	{regexp.MustCompile(`(?i)\b(exec|spawn|child_process)\b.*\b(sh|bash|cmd)\b`), alert.Warning, "shell spawn in logs"},
}

// maxLogLineEcho bounds how much of a matched log line is echoed back in
// the alert message.
const maxLogLineEcho = 200

// watchLogs follows the container's combined log stream and fires an alert
// on the first logPatterns entry each line matches.
func (m *Monitor) watchLogs(ctx context.Context) {
	out := make(chan string, 64)
	done := make(chan error, 1)

	go func() { done <- m.rt.LogsStream(ctx, true, 0, out) }()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-out:
			if !ok {
				return
			}
			m.scanLogLine(line)
		case err := <-done:
			if err != nil && ctx.Err() == nil {
				if runtime.IsTransient(err) {
					m.log.Debug("log watcher transient error", "error", err)
				} else {
					m.alerts.Fire(alert.Warning, "monitor", "log watcher error: "+err.Error())
				}
			}
			return
		}
	}
}

func (m *Monitor) scanLogLine(line string) {
	for _, p := range logPatterns {
		if p.re.MatchString(line) {
			short := line
			if len(short) > maxLogLineEcho {
				short = short[:maxLogLineEcho] + "..."
			}
			m.alerts.Fire(p.severity, "logs", p.description+": "+short)
			return
		}
	}
}
