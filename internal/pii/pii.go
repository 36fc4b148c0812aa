package pii

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/peekknuf/datatrust/internal/dataset"
)

const (
	// BatchSize bounds how many values of a column are scanned at a time.
	BatchSize = 1000

	minCardinality = 0.1
	maxNameTokens  = 2
	minValueLength = 3
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	codePattern  = regexp.MustCompile(`^[A-Za-z0-9-]{1,10}$`)

	identifierNames = map[string]bool{"id": true, "identifier": true, "index": true}
)

// Result is the outcome of a PII scan.
type Result struct {
	Detected bool `json:"pii_detected" yaml:"pii_detected"`
	Count    int  `json:"pii_count" yaml:"pii_count"`
}

// Detector looks for person names and email addresses in text columns.
type Detector struct {
	recognizer EntityRecognizer
	logger     *slog.Logger
}

// NewDetector builds a detector. A nil recognizer uses prose.
func NewDetector(rec EntityRecognizer, logger *slog.Logger) *Detector {
	if rec == nil {
		rec = NewProseRecognizer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{recognizer: rec, logger: logger.WithGroup("pii")}
}

// Detect counts distinct values that look like a person name or contain an
// email address. Numeric, low cardinality and identifier columns are skipped.
func (p *Detector) Detect(d *dataset.Dataset) Result {
	seen := make(map[string]bool)

	for _, c := range d.Columns() {
		if skipColumn(c) {
			p.logger.Debug("column skipped", "column", c.Name())
			continue
		}
		for start := 0; start < c.Len(); start += BatchSize {
			end := min(start+BatchSize, c.Len())
			p.scanBatch(c, start, end, seen)
		}
	}

	r := Result{Detected: len(seen) > 0, Count: len(seen)}
	p.logger.Debug("pii checked", "detected", r.Detected, "count", r.Count)
	return r
}

func (p *Detector) scanBatch(c dataset.Column, start, end int, seen map[string]bool) {
	for i := start; i < end; i++ {
		val := strings.TrimSpace(c.At(i).String())
		if skipValue(val) {
			continue
		}

		ents, err := p.recognizer.Entities(val)
		if err != nil {
			p.logger.Warn("entity recognition failed", "column", c.Name(), "error", err)
		}
		for _, e := range ents {
			if e.Label == LabelPerson && len(strings.Fields(val)) <= maxNameTokens && !seen[val] {
				p.logger.Debug("person detected", "column", c.Name(), "value", val)
				seen[val] = true
			}
		}

		if emailPattern.MatchString(val) && !seen[val] {
			p.logger.Debug("email detected", "column", c.Name(), "value", val)
			seen[val] = true
		}
	}
}

func skipColumn(c dataset.Column) bool {
	if c.DType() == dataset.DTypeNumber {
		return true
	}
	if c.CardinalityRatio() < minCardinality {
		return true
	}
	return identifierNames[cases.Fold().String(c.Name())]
}

// skipValue reports values assumed to be codes rather than personal data.
func skipValue(val string) bool {
	lower := strings.ToLower(val)
	if lower == "" || lower == "nan" {
		return true
	}
	if isDigits(val) || utf8.RuneCountInString(val) < minValueLength {
		return true
	}
	return codePattern.MatchString(val)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
