// logger.go records every relay exchange.
//
// Entries go to ~/.aibridge/logs/ai.log (next to app.log) once applog
// has been initialised; before that nothing is written.
package ai

import (
	"os"
	"sync"
	"time"

	"github.com/DachengChen/aibridge/applog"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	logMu   sync.Mutex
	logDir  string
	logFile *os.File
	aiLog   = zerolog.Nop()
	aiLogOn bool
)

// relayLog returns the ai.log logger, reopening it when the applog
// directory has changed.
func relayLog() (zerolog.Logger, bool) {
	logMu.Lock()
	defer logMu.Unlock()

	dir := applog.Dir()
	if dir == logDir {
		return aiLog, aiLogOn
	}
	logDir = dir
	aiLog, aiLogOn = zerolog.Nop(), false
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	f, err := applog.OpenFile("ai.log")
	if err != nil {
		applog.Error("ai log unavailable: %v", err)
		return aiLog, false
	}
	if f == nil {
		return aiLog, false
	}
	logFile = f
	aiLog = applog.New(f, zerolog.DebugLevel).With().Str("op", "relay").Logger()
	aiLogOn = true
	return aiLog, true
}

// LogRelayRequest logs an outgoing relay call.
func LogRelayRequest(apiURL string, message string) {
	l, ok := relayLog()
	if !ok {
		return
	}
	l.Info().
		Str("dir", "request").
		Str("url", apiURL).
		Int("message_len", len(message)).
		Str("message", message).
		Send()
}

// LogRelayResponse logs the outcome of a relay call.
func LogRelayResponse(apiURL string, resp *Response, err error, took time.Duration) {
	l, ok := relayLog()
	if !ok {
		return
	}
	ev := l.Info().
		Str("dir", "response").
		Str("url", apiURL).
		Dur("took", took)
	if err != nil {
		ev = ev.Str("kind", KindOf(err).String()).Err(err)
		var re *RelayError
		if errors.As(err, &re) && re.Kind == KindStatus {
			ev = ev.Int("status", re.StatusCode)
		}
	}
	if resp != nil {
		ev = ev.Int("reply_len", len(resp.Reply)).Str("reply", resp.Reply)
	}
	ev.Send()
}
