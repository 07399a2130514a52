// Package sanitize strips sensitive and prohibited content from
// notification text before it is persisted or sent off-device.
//
// The pipeline is a fixed sequence of pure stages: banned-term masking,
// pattern-based redaction, symbol-run collapse, and a final
// normalization pass. Every stage operates on the output of the
// previous one, so no original sensitive substring survives a match.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// Mask is the fixed replacement token for redacted spans.
const Mask = "***"

// LinkRemoved replaces URLs instead of the mask so summaries can still
// say a link was present.
const LinkRemoved = "[link removed]"

// MinUsefulLength is the minimum combined title+body length after
// sanitization. Below it the whole event is noise and the caller
// discards it.
const MinUsefulLength = 3

// symbolRunThreshold is the symbol density above which repeated
// punctuation runs are collapsed into the mask.
const symbolRunThreshold = 0.30

// Redaction patterns, applied in order. Each entry replaces every match
// with its replacement string.
var patterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	// Domestic mobile numbers (11 digits starting 13-19)
	{regexp.MustCompile(`1[3-9]\d{9}`), Mask},
	// National-ID-like patterns: 18-digit with optional X checksum, or
	// legacy 15-digit. Must run before the generic digit-run rule so the
	// checksum letter is consumed with its digits.
	{regexp.MustCompile(`\d{17}[\dXx]|\d{15}`), Mask},
	// Long digit runs resembling account or card numbers
	{regexp.MustCompile(`\d{8,19}`), Mask},
	// URLs get a distinct marker
	{regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s\p{Han}]+`), LinkRemoved},
	// Monetary incentive phrasing: "<number> <currency> bonus/cash/reward"
	{regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:元|块|万|美元|usd|dollars?)\s*(?:红包|奖金|现金|奖励|返现|bonus|cash|reward)`), Mask},
	// Urgency plus payment action
	{regexp.MustCompile(`(?i)(?:紧急|立即|马上|速速|urgent(?:ly)?|immediately)[^。！？.!?]{0,20}?(?:转账|汇款|付款|打款|缴费|transfer|remit|pay(?:ment)?)`), Mask},
}

// bannedTermRE matches any banned term, case-insensitively. A single
// compiled alternation matches on the original text directly, so case
// folds that change byte length (Kelvin sign, dotted capital I) cannot
// shift the mask position.
var bannedTermRE = compileBannedTerms()

func compileBannedTerms() *regexp.Regexp {
	quoted := make([]string, 0, len(bannedTermsZH)+len(bannedTermsEN))
	for _, list := range [][]string{bannedTermsZH, bannedTermsEN} {
		for _, term := range list {
			quoted = append(quoted, regexp.QuoteMeta(term))
		}
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// maskRunRE matches 4 or more consecutive mask tokens, optionally
// whitespace separated, for the normalization pass.
var maskRunRE = regexp.MustCompile(`(?:\*{3}\s*){4,}`)

// whitespaceRE collapses whitespace runs.
var whitespaceRE = regexp.MustCompile(`\s+`)

// Sanitize runs the full redaction pipeline over one text field.
// It is a pure function; empty input stays empty.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	out := maskBannedTerms(text)
	out = applyPatterns(out)
	out = collapseSymbolRuns(out)
	return normalize(out)
}

// Event applies Sanitize independently to a title and body and reports
// whether the remaining text is long enough to keep. Sanitization can
// turn a previously valid event into noise.
func Event(title, body string) (cleanTitle, cleanBody string, keep bool) {
	cleanTitle = Sanitize(title)
	cleanBody = Sanitize(body)
	keep = len([]rune(cleanTitle))+len([]rune(cleanBody)) >= MinUsefulLength
	return cleanTitle, cleanBody, keep
}

// maskBannedTerms replaces every banned-term occurrence with the mask,
// case-insensitively.
func maskBannedTerms(text string) string {
	return bannedTermRE.ReplaceAllString(text, Mask)
}

func applyPatterns(text string) string {
	out := text
	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}
	return out
}

// collapseSymbolRuns replaces runs of 4+ identical punctuation/symbol
// runes with the mask when the string's overall symbol density exceeds
// the threshold. Spam padding ("!!!!!!", "￥￥￥￥") collapses; normal
// prose with an exclamation or two does not.
func collapseSymbolRuns(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return text
	}

	symbols := 0
	for _, r := range runes {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			symbols++
		}
	}
	if float64(symbols)/float64(len(runes)) <= symbolRunThreshold {
		return text
	}

	var sb strings.Builder
	for i := 0; i < len(runes); {
		r := runes[i]
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			sb.WriteRune(r)
			i++
			continue
		}
		j := i
		for j < len(runes) && runes[j] == r {
			j++
		}
		if j-i >= 4 {
			sb.WriteString(Mask)
		} else {
			sb.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return sb.String()
}

// normalize collapses runs of 4+ mask tokens into exactly 3, collapses
// whitespace runs to a single space, and trims.
func normalize(text string) string {
	out := maskRunRE.ReplaceAllString(text, Mask+Mask+Mask)
	out = whitespaceRE.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
