package compliance

import (
	"encoding/json"
	"reflect"
	"testing"

	"eventhub/api/models"
)

func types(vs []Violation) []ViolationType {
	out := make([]ViolationType, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Type)
	}
	return out
}

func TestScanPhoneAndContactPhrase(t *testing.T) {
	vs := Scan("call me at 9876543210")
	want := []ViolationType{PhoneNumber, ContactPhrase}
	if got := types(vs); !reflect.DeepEqual(got, want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
	if vs[0].Severity != SeverityHigh || vs[1].Severity != SeverityMedium {
		t.Fatalf("unexpected severities: %+v", vs)
	}
	if vs[0].Matches[0] != "9876543210" {
		t.Fatalf("phone match = %q", vs[0].Matches[0])
	}

	res := ScanObject(map[string]any{"notes": "call me at 9876543210"})
	if res.RiskLevel != models.RiskHigh || res.Clean {
		t.Fatalf("risk = %s clean=%v", res.RiskLevel, res.Clean)
	}
}

func TestScanDetectsEachType(t *testing.T) {
	cases := []struct {
		text string
		want ViolationType
	}{
		{"write to booking@venue.example.com", Email},
		{"ping us on WhatsApp", MessagingApp},
		{"see https://example.org/rates", URL},
		{"let's get in touch", ContactPhrase},
		{"this is crap", Profanity},
		{"+91 9876543210", PhoneNumber},
		{"555-123-4567", PhoneNumber},
	}
	for _, tc := range cases {
		t.Run(string(tc.want), func(t *testing.T) {
			got := types(Scan(tc.text))
			found := false
			for _, g := range got {
				if g == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("Scan(%q) = %v, missing %s", tc.text, got, tc.want)
			}
		})
	}
}

func TestScanCleanText(t *testing.T) {
	for _, text := range []string{"", "Concert on Saturday, budget ₹50000", "Capacity 250 guests, 2025-12-31"} {
		if vs := Scan(text); len(vs) != 0 {
			t.Fatalf("Scan(%q) = %+v, want none", text, vs)
		}
	}
}

func TestScanObjectRiskLevels(t *testing.T) {
	cases := []struct {
		name string
		data map[string]any
		want models.RiskLevel
	}{
		{"clean", map[string]any{"eventType": "Concert"}, models.RiskClean},
		{"single medium is low", map[string]any{"notes": "see www.example.com"}, models.RiskLow},
		{"two medium is medium", map[string]any{"notes": "see www.example.com", "other": "get in touch"}, models.RiskMedium},
		{"profanity only is low", map[string]any{"notes": "damn good"}, models.RiskLow},
		{"any high is high", map[string]any{"deep": map[string]any{"list": []any{"mail a@b.co"}}}, models.RiskHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScanObject(tc.data).RiskLevel; got != tc.want {
				t.Fatalf("risk = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestScanObjectFieldPaths(t *testing.T) {
	res := ScanObject(map[string]any{
		"pricing":      map[string]any{"value": "₹50000", "note": "dm me"},
		"requirements": []any{"stage", "reach me on telegram"},
	})
	want := []string{"pricing.note", "requirements.1"}
	if !reflect.DeepEqual(res.FlaggedFields, want) {
		t.Fatalf("flagged = %v, want %v", res.FlaggedFields, want)
	}
}

func TestScanObjectNumericLeaves(t *testing.T) {
	res := ScanObject(map[string]any{
		"contact":  float64(9876543210),
		"budget":   float64(65000),
		"capacity": json.Number("300"),
		"backup":   []any{int64(9123456780)},
	})
	if res.RiskLevel != models.RiskHigh {
		t.Fatalf("risk = %s, want high", res.RiskLevel)
	}
	want := []string{"backup.0", "contact"}
	if !reflect.DeepEqual(res.FlaggedFields, want) {
		t.Fatalf("flagged = %v, want %v", res.FlaggedFields, want)
	}
	if got := res.Violations[0].Matches; !reflect.DeepEqual(got, []string{"9123456780"}) {
		t.Fatalf("matches = %v", got)
	}
}

func TestGenerateFlags(t *testing.T) {
	high := ScanObject(map[string]any{"n": "call me at 9876543210"})
	got := GenerateFlags(high)
	want := []string{FlagAutoRejectCandidate, "violation_contact_phrase", "violation_phone_number"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flags = %v, want %v", got, want)
	}

	medium := ScanObject(map[string]any{"a": "www.example.com", "b": "get in touch"})
	got = GenerateFlags(medium)
	want = []string{FlagRequiresReview, "violation_contact_phrase", "violation_url"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flags = %v, want %v", got, want)
	}

	if flags := GenerateFlags(ScanObject(map[string]any{"a": "fine"})); len(flags) != 0 {
		t.Fatalf("clean flags = %v", flags)
	}
	if flags := GenerateFlags(Unknown(nil)); !reflect.DeepEqual(flags, []string{FlagRequiresReview}) {
		t.Fatalf("unknown flags = %v", flags)
	}
}
