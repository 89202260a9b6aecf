package repository

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNewExternalRef_Format(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 30, 45, 0, time.UTC)
	re := regexp.MustCompile(`^[A-Z]{3}-20260310-093045-[0-9A-F]{8}$`)

	cases := map[string]string{
		"cash":          "CSH",
		"mobile_money":  "MOM",
		"card":          "CRD",
		"bank_transfer": "BNK",
		"cheque":        "CHQ",
		"barter":        "PAY",
	}
	for method, prefix := range cases {
		ref := NewExternalRef(method, at)
		if !strings.HasPrefix(ref, prefix+"-") {
			t.Fatalf("expected prefix %s for %s, got %s", prefix, method, ref)
		}
		if !re.MatchString(ref) {
			t.Fatalf("reference %s does not match expected shape", ref)
		}
	}
}

func TestNewExternalRef_Distinct(t *testing.T) {
	at := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ref := NewExternalRef("cash", at)
		if seen[ref] {
			t.Fatalf("duplicate reference generated: %s", ref)
		}
		seen[ref] = true
	}
}

func TestFormatReceiptNumber(t *testing.T) {
	if got := FormatReceiptNumber(2026, 1); got != "REC-2026-00001" {
		t.Fatalf("got %s", got)
	}
	if got := FormatReceiptNumber(2026, 42); got != "REC-2026-00042" {
		t.Fatalf("got %s", got)
	}
	// sequences can outgrow the padding
	if got := FormatReceiptNumber(2026, 123456); got != "REC-2026-123456" {
		t.Fatalf("got %s", got)
	}
}
