package prompts

import (
	"strings"
	"time"
)

// TimestampLayout is the wall-clock annotation format prefixed to stored user
// turns.
const TimestampLayout = "Mon, 02 Jan 2006 15:04 MST"

// MorningBrief builds the one-shot batch prompt for the requested tickers.
// This path deliberately carries no conversation history.
func MorningBrief(tickers []string) string {
	var b strings.Builder
	b.WriteString("Give me a morning brief for the following tickers: ")
	b.WriteString(strings.Join(tickers, ", "))
	b.WriteString(".\n")
	b.WriteString("For each ticker report the current price, a one-sentence note on recent movement or news, and your sentiment (bullish, bearish, or neutral).\n")
	b.WriteString("Use at most two sentences per ticker.")
	return b.String()
}

// AnnotateTickers appends a note naming the detected ticker symbols so the
// model does not read them as ordinary words. Text without tickers passes
// through unchanged.
func AnnotateTickers(text string, tickers []string) string {
	if len(tickers) == 0 {
		return text
	}
	noun := "is a stock ticker symbol"
	if len(tickers) > 1 {
		noun = "are stock ticker symbols"
	}
	return text + " (note: " + strings.Join(tickers, ", ") + " " + noun + ")"
}

// StampTime prefixes text with the current wall-clock time in the configured
// location, resolved once per message at the history-append step.
func StampTime(text string, now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return "[" + now.Format(TimestampLayout) + "] " + text
}
