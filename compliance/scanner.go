// Package compliance flags contact-info leakage and profanity in free text
// submitted through collaboration proposals and counters.
package compliance

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"eventhub/api/models"
)

type ViolationType string

const (
	PhoneNumber   ViolationType = "phone_number"
	Email         ViolationType = "email"
	MessagingApp  ViolationType = "messaging_app"
	URL           ViolationType = "url"
	ContactPhrase ViolationType = "contact_phrase"
	Profanity     ViolationType = "profanity"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

const (
	FlagAutoRejectCandidate = "auto_reject_candidate"
	FlagRequiresReview      = "requires_review"
	FlagScanFailed          = "scan_failed"
)

// Violation is one type of policy hit. Field is set by ScanObject.
type Violation struct {
	Type     ViolationType `json:"type"`
	Matches  []string      `json:"matches"`
	Severity Severity      `json:"severity"`
	Field    string        `json:"field,omitempty"`
}

type Result struct {
	Clean         bool             `json:"clean"`
	RiskLevel     models.RiskLevel `json:"riskLevel"`
	Violations    []Violation      `json:"violations"`
	FlaggedFields []string         `json:"flaggedFields"`
	Summary       string           `json:"summary"`
}

type rule struct {
	kind     ViolationType
	severity Severity
	re       *regexp.Regexp
}

// Rules run in this order, so Scan output is ordered by type.
var rules = []rule{
	{PhoneNumber, SeverityHigh, regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?\b\d{10}\b|\b\d{3}[\s.-]\d{3}[\s.-]\d{4}\b|\b\d{5}[\s-]\d{5}\b`)},
	{Email, SeverityHigh, regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)},
	{MessagingApp, SeverityHigh, regexp.MustCompile(`(?i)\b(?:whats\s?app|telegram|signal app|wechat|viber|snapchat|instagram|insta|imessage|facebook messenger|skype)\b`)},
	{URL, SeverityMedium, regexp.MustCompile(`(?i)\bhttps?://[^\s]+|\bwww\.[^\s]+|\b[a-z0-9-]+\.(?:com|in|net|org|io|co|me|ly)\b(?:/[^\s]*)?`)},
	{ContactPhrase, SeverityMedium, regexp.MustCompile(`(?i)\b(?:call me|text me|ping me|dm me|message me|contact me|reach me|reach out to me|my number|my email|my contact|get in touch|connect offline|outside the platform)\b`)},
	{Profanity, SeverityLow, regexp.MustCompile(`(?i)\b(?:fuck\w*|shit\w*|bitch\w*|bastard|asshole|damn|crap|dick)\b`)},
}

// Scan runs every rule against text. Rules are independent: one text can
// produce several violation types.
func Scan(text string) []Violation {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []Violation
	for _, r := range rules {
		found := r.re.FindAllString(text, -1)
		if len(found) == 0 {
			continue
		}
		out = append(out, Violation{Type: r.kind, Matches: dedupe(found), Severity: r.severity})
	}
	return out
}

// ScanObject walks nested maps, slices and strings, scanning every string leaf
// under its dotted field path. Numeric leaves are scanned as decimal text.
func ScanObject(data any) Result {
	var violations []Violation
	walk("", data, func(path, text string) {
		for _, v := range Scan(text) {
			v.Field = path
			violations = append(violations, v)
		}
	})
	return summarize(violations)
}

func walk(path string, v any, visit func(path, text string)) {
	switch t := v.(type) {
	case string:
		visit(path, t)
	case float64:
		visit(path, strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		visit(path, t.String())
	case int:
		visit(path, strconv.Itoa(t))
	case int64:
		visit(path, strconv.FormatInt(t, 10))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(join(path, k), t[k], visit)
		}
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(join(path, k), t[k], visit)
		}
	case []any:
		for i, item := range t {
			walk(join(path, strconv.Itoa(i)), item, visit)
		}
	case []string:
		for i, item := range t {
			walk(join(path, strconv.Itoa(i)), item, visit)
		}
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func summarize(violations []Violation) Result {
	res := Result{Violations: violations, FlaggedFields: []string{}}
	if res.Violations == nil {
		res.Violations = []Violation{}
	}

	high, medium := 0, 0
	fields := map[string]struct{}{}
	for _, v := range violations {
		switch v.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
		if v.Field != "" {
			fields[v.Field] = struct{}{}
		}
	}
	for f := range fields {
		res.FlaggedFields = append(res.FlaggedFields, f)
	}
	sort.Strings(res.FlaggedFields)

	switch {
	case high > 0:
		res.RiskLevel = models.RiskHigh
	case medium > 1:
		res.RiskLevel = models.RiskMedium
	case len(violations) > 0:
		res.RiskLevel = models.RiskLow
	default:
		res.RiskLevel = models.RiskClean
	}
	res.Clean = len(violations) == 0
	if res.Clean {
		res.Summary = "no policy violations found"
	} else {
		res.Summary = fmt.Sprintf("%d violation(s) across %d field(s), risk %s", len(violations), len(res.FlaggedFields), res.RiskLevel)
	}
	return res
}

// GenerateFlags turns a scan result into the set of flags stored on the record.
func GenerateFlags(res Result) []string {
	set := map[string]struct{}{}
	for _, v := range res.Violations {
		set["violation_"+string(v.Type)] = struct{}{}
	}
	switch res.RiskLevel {
	case models.RiskHigh:
		set[FlagAutoRejectCandidate] = struct{}{}
	case models.RiskMedium, models.RiskUnknown:
		set[FlagRequiresReview] = struct{}{}
	}
	flags := make([]string, 0, len(set))
	for f := range set {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Scanner is the seam the negotiation service depends on.
type Scanner interface {
	ScanObject(data any) (Result, error)
}

// RegexScanner is the production Scanner.
type RegexScanner struct{}

// ScanObject never fails on valid input, but a panic inside a rule is
// converted into an error so callers can fall back to manual review.
func (RegexScanner) ScanObject(data any) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compliance scan panicked: %v", r)
		}
	}()
	return ScanObject(data), nil
}

// Unknown is the result recorded when scanning fails.
func Unknown(err error) Result {
	return Result{
		RiskLevel:     models.RiskUnknown,
		Violations:    []Violation{},
		FlaggedFields: []string{},
		Summary:       fmt.Sprintf("scan failed: %v", err),
	}
}
