package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizePhoneNumbers(t *testing.T) {
	got := Sanitize("call 13812345678 now")
	if strings.Contains(got, "13812345678") {
		t.Errorf("phone number survived: %q", got)
	}
	if !strings.Contains(got, Mask) {
		t.Errorf("expected mask in %q", got)
	}
}

func TestSanitizeNationalID(t *testing.T) {
	// 18-digit with X checksum must be consumed whole, not split into a
	// digit run plus a dangling X.
	got := Sanitize("id 11010519491231002X ok")
	if strings.Contains(got, "X") && !strings.Contains(got, "ok") {
		t.Fatalf("unexpected output %q", got)
	}
	if got != "id *** ok" {
		t.Errorf("Sanitize = %q, want %q", got, "id *** ok")
	}
}

func TestSanitizeDigitRuns(t *testing.T) {
	got := Sanitize("account 6222021234567890123 charged")
	if strings.ContainsAny(got, "0123456789") {
		t.Errorf("digits survived: %q", got)
	}
}

func TestSanitizeURLs(t *testing.T) {
	tests := []struct {
		in string
	}{
		{"visit https://example.com/promo?q=1 today"},
		{"visit www.example.com today"},
		{"visit HTTP://EXAMPLE.COM today"},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if !strings.Contains(got, LinkRemoved) {
			t.Errorf("Sanitize(%q) = %q, want link marker", tt.in, got)
		}
		if strings.Contains(strings.ToLower(got), "example.com") {
			t.Errorf("URL survived in %q", got)
		}
	}
}

func TestSanitizeMonetaryIncentive(t *testing.T) {
	got := Sanitize("领取5000元红包")
	if strings.Contains(got, "红包") {
		t.Errorf("incentive phrase survived: %q", got)
	}

	got = Sanitize("you won a 100 USD bonus")
	if strings.Contains(strings.ToLower(got), "bonus") {
		t.Errorf("incentive phrase survived: %q", got)
	}
}

func TestSanitizeUrgencyPayment(t *testing.T) {
	got := Sanitize("紧急！请立即转账到指定账户")
	if strings.Contains(got, "转账") {
		t.Errorf("urgency+payment phrase survived: %q", got)
	}

	got = Sanitize("urgent: please transfer the funds")
	if strings.Contains(strings.ToLower(got), "transfer") {
		t.Errorf("urgency+payment phrase survived: %q", got)
	}
}

func TestSanitizeCombined(t *testing.T) {
	got := Sanitize("call 13812345678 now for 5000元 bonus at https://spam.example")
	if strings.Contains(got, "13812345678") || strings.Contains(got, "spam.example") {
		t.Errorf("sensitive content survived: %q", got)
	}
	if !strings.Contains(got, LinkRemoved) {
		t.Errorf("expected link marker in %q", got)
	}
}

func TestSanitizeSymbolRuns(t *testing.T) {
	// High symbol density with long runs collapses
	got := Sanitize("SALE!!!!!!!!")
	if strings.Contains(got, "!!!!") {
		t.Errorf("symbol run survived: %q", got)
	}

	// Normal prose with ordinary punctuation is untouched
	in := "Meeting moved to 3pm. See you there!"
	if got := Sanitize(in); got != in {
		t.Errorf("normal prose changed: %q", got)
	}
}

func TestNormalizeMaskRuns(t *testing.T) {
	// Adjacent redactions collapse instead of stacking
	got := Sanitize("13812345678 13912345678 13712345678 13612345678 13512345678")
	if strings.Count(got, "*") > 9 {
		t.Errorf("mask run not collapsed: %q", got)
	}
}

func TestSanitizeWhitespaceCollapse(t *testing.T) {
	got := Sanitize("  hello\t\tworld \n")
	if got != "hello world" {
		t.Errorf("Sanitize = %q, want %q", got, "hello world")
	}
}

func TestEventMinLength(t *testing.T) {
	_, _, keep := Event("hi", "")
	if keep {
		t.Error("two-rune event should be dropped")
	}

	title, body, keep := Event("Message", "see you at 6")
	if !keep {
		t.Error("normal event should be kept")
	}
	if title != "Message" || body != "see you at 6" {
		t.Errorf("clean event altered: %q / %q", title, body)
	}

	// An event that is pure redacted content drops below the floor only
	// if nothing useful remains; the mask itself counts as residue.
	_, _, keep = Event("", "ok")
	if keep {
		t.Error("short leftover should be dropped")
	}
}

func TestBannedTermsMasked(t *testing.T) {
	for _, term := range []string{bannedTermsZH[0], bannedTermsEN[0]} {
		got := Sanitize("contains " + term + " here")
		if strings.Contains(strings.ToLower(got), strings.ToLower(term)) {
			t.Errorf("banned term %q survived: %q", term, got)
		}
	}
}

func TestBannedTermsCaseInsensitive(t *testing.T) {
	term := strings.ToUpper(bannedTermsEN[0])
	got := Sanitize("x " + term + " y")
	if strings.Contains(strings.ToLower(got), strings.ToLower(term)) {
		t.Errorf("uppercased banned term survived: %q", got)
	}
}

func TestBannedTermsAfterFoldLengthChangingRune(t *testing.T) {
	// Runes whose lowercase form has a different byte length must not
	// shift the mask onto the wrong bytes or leave term residue behind.
	tests := []string{
		"K phishing alert", // Kelvin sign folds to ASCII k
		"İ phishing alert", // dotted capital I folds to two runes
	}
	for _, in := range tests {
		got := Sanitize(in)
		if !utf8.ValidString(got) {
			t.Fatalf("Sanitize(%q) produced invalid UTF-8: %q", in, got)
		}
		if strings.Contains(strings.ToLower(got), "phishing") {
			t.Errorf("banned term survived in %q", got)
		}
		if !strings.HasSuffix(got, Mask+" alert") {
			t.Errorf("Sanitize(%q) = %q, want mask before %q", in, got, "alert")
		}
	}
}

func TestSanitizeEmpty(t *testing.T) {
	if got := Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q", got)
	}
}
