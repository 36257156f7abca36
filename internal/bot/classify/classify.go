// Package classify decides which prompt-construction path an inbound message
// takes: a canned special-case reply, a stateless morning-brief batch, or a
// plain history-aware exchange with optional ticker annotations.
package classify

import (
	"regexp"
	"strings"
)

// Mode is the classification of one inbound message.
type Mode string

const (
	ModePlain        Mode = "plain"
	ModeMorningBrief Mode = "morning_brief"
	ModeSpecialCase  Mode = "special_case"
)

// SpecialCaseReply is the canned acknowledgment for the special-case pattern.
const SpecialCaseReply = "it is done"

// Result is the outcome of classifying one message. Exactly one Mode is ever
// produced per message; precedence is special case > morning brief > plain.
type Result struct {
	Mode Mode
	// Tickers holds uppercase symbols in order of first appearance. Duplicates
	// are kept and symbols are not validated against a registry; false
	// positives are accepted.
	Tickers []string
	// Reply carries the canned text when Mode is ModeSpecialCase.
	Reply string
}

// Patterns are package-level data so the rules can be unit-tested apart from
// the dispatcher.
var (
	// "get/bring <mention> here by 6am" and close variants.
	specialCasePattern = regexp.MustCompile(`(?i)\b(?:get|bring)\s+(?:me\s+)?(?:<@[A-Z0-9]+>|@\w+)\s+here\s+by\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)\b`)

	morningBriefPattern = regexp.MustCompile(`(?i)morning\s+brief`)

	// A sigil followed by 1-5 letters, anywhere in the text.
	tickerPattern = regexp.MustCompile(`\$[A-Za-z]{1,5}`)

	briefSeparators = regexp.MustCompile(`[,\s]+`)
)

// Classify inspects raw inbound text and returns its classification. It is a
// pure function: the same text always yields the same Result.
func Classify(text string) Result {
	if specialCasePattern.MatchString(text) {
		return Result{Mode: ModeSpecialCase, Reply: SpecialCaseReply}
	}

	if loc := morningBriefPattern.FindStringIndex(text); loc != nil {
		if tickers := parseBriefTickers(text[loc[1]:]); len(tickers) > 0 {
			return Result{Mode: ModeMorningBrief, Tickers: tickers}
		}
		// A brief request with no parseable tickers falls through to plain.
	}

	return Result{Mode: ModePlain, Tickers: extractTickers(text)}
}

// parseBriefTickers parses the token list following the "morning brief"
// phrase: comma/space separated, each optionally prefixed with a sigil.
func parseBriefTickers(rest string) []string {
	rest = strings.TrimLeft(rest, ":")
	var tickers []string
	for _, tok := range briefSeparators.Split(rest, -1) {
		tok = strings.TrimPrefix(tok, "$")
		if tok == "" {
			continue
		}
		tickers = append(tickers, strings.ToUpper(tok))
	}
	return tickers
}

// extractTickers returns every sigil-prefixed symbol in order of appearance.
func extractTickers(text string) []string {
	matches := tickerPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(matches))
	for _, m := range matches {
		tickers = append(tickers, strings.ToUpper(strings.TrimPrefix(m, "$")))
	}
	return tickers
}
