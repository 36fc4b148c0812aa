package quality

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/profiler"
)

// keyColumns are compared case-insensitively; their own duplicate counts can
// raise the row-level duplicate count.
var keyColumns = map[string]struct{}{
	"id":         {},
	"customerid": {},
	"userid":     {},
}

// Report summarizes missingness, type problems, anomalies, and duplicates.
type Report struct {
	MissingValues  int     `json:"missingValues" yaml:"missingValues"`
	MissingRatio   float64 `json:"missingRatio" yaml:"missingRatio"`
	IncorrectTypes int     `json:"incorrectTypes" yaml:"incorrectTypes"`
	Anomalies      int     `json:"anomalies" yaml:"anomalies"`
	Duplicates     int     `json:"duplicates" yaml:"duplicates"`
}

// ColumnAnomalies is the per-column breakdown behind Report.Anomalies. Every
// component is already capped at the per-column limit.
type ColumnAnomalies struct {
	Column     string
	NonNumeric int
	Range      int
	Negative   int
	Outlier    int
	PCALike    bool
	Skipped    bool
}

// Total is the sum of all anomaly kinds.
func (a ColumnAnomalies) Total() int {
	return a.NonNumeric + a.Range + a.Negative + a.Outlier
}

// Scorer computes quality reports. It is safe for concurrent use.
type Scorer struct {
	thresholds config.Thresholds
	logger     *slog.Logger
}

func NewScorer(t config.Thresholds, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{thresholds: t, logger: logger.WithGroup("quality")}
}

// Score runs every quality check over d using the column roles from the
// classifier.
func (s *Scorer) Score(d *dataset.Dataset, roles profiler.Roles) Report {
	r := Report{IncorrectTypes: roles.IncorrectTypes}

	for _, c := range d.Columns() {
		r.MissingValues += c.NullCount()
	}
	if d.Cells() > 0 {
		r.MissingRatio = profiler.Round(float64(r.MissingValues)/float64(d.Cells()), 2)
	}

	r.Anomalies = s.anomalies(d, roles)
	r.Duplicates = s.duplicates(d)

	s.logger.Debug("quality checked",
		"missing", r.MissingValues,
		"missing_ratio", r.MissingRatio,
		"incorrect_types", r.IncorrectTypes,
		"anomalies", r.Anomalies,
		"duplicates", r.Duplicates)
	return r
}

// Caps returns the per-column and total anomaly limits for a row count.
func (s *Scorer) Caps(rows int) (perColumn, total int) {
	perColumn = int(math.Floor(float64(rows) * s.thresholds.MaxAnomaliesPerColumn))
	total = int(math.Floor(float64(rows) * s.thresholds.MaxAnomaliesTotal))
	return perColumn, total
}

func (s *Scorer) anomalies(d *dataset.Dataset, roles profiler.Roles) int {
	perColumn, maxTotal := s.Caps(d.Rows())

	total := 0
	for _, name := range roles.Numeric {
		c, ok := d.Column(name)
		if !ok {
			continue
		}
		a := s.InspectColumn(c, perColumn)
		total += a.Total()

		s.logger.Debug("column inspected",
			"column", a.Column,
			"skipped", a.Skipped,
			"pca_like", a.PCALike,
			"non_numeric", a.NonNumeric,
			"range", a.Range,
			"negative", a.Negative,
			"outlier", a.Outlier)

		if total > maxTotal {
			s.logger.Debug("anomaly total capped", "cap", maxTotal)
			total = maxTotal
			break
		}
	}
	return total
}

// InspectColumn counts the anomalies of a numeric column, capping each kind
// at limit.
func (s *Scorer) InspectColumn(c dataset.Column, limit int) ColumnAnomalies {
	t := s.thresholds
	a := ColumnAnomalies{Column: c.Name()}

	nonNumeric := 0
	for i := 0; i < c.Len(); i++ {
		v := c.At(i)
		if v.Kind() != dataset.KindText {
			continue
		}
		if _, ok := v.Float(); !ok {
			nonNumeric++
		}
	}
	a.NonNumeric = min(nonNumeric, limit)

	valid := c.Floats()
	if len(valid) == 0 {
		return a
	}

	st := profiler.Summarize(c.Name(), valid)
	if st.Distinct <= t.SkipMaxDistinct || st.Std < t.SkipMinStd || st.Constant || st.Count < t.MinValidValues {
		a.Skipped = true
		return a
	}

	a.PCALike = st.IsPCALike(t)
	amount := st.IsAmount()

	values := valid
	if amount {
		values = log1p(valid)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	iqrMultiplier := t.IQRMultiplier
	madThreshold := t.MADThreshold
	switch {
	case a.PCALike:
		iqrMultiplier = t.IQRMultiplierPCA
		madThreshold = t.MADThresholdPCA
	case amount:
		iqrMultiplier = t.IQRMultiplierAmount
		madThreshold = t.MADThresholdAmount
	}

	q1 := profiler.Quantile(sorted, 0.25)
	q3 := profiler.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lower, upper := q1-iqrMultiplier*iqr, q3+iqrMultiplier*iqr
	outside := 0
	for _, v := range values {
		if v < lower || v > upper {
			outside++
		}
	}
	a.Range = min(outside, limit)

	if !a.PCALike && st.Min < 0 {
		negatives := 0
		for _, v := range valid {
			if v < 0 {
				negatives++
			}
		}
		a.Negative = min(negatives, limit)
	}

	if len(values) >= t.MinValidValues {
		median := profiler.Quantile(sorted, 0.5)
		mad := profiler.MAD(values, median)
		if mad == 0 {
			mad = st.Std
			if mad == 0 || math.IsNaN(mad) {
				mad = 1
			}
		}
		outliers := 0
		for _, v := range values {
			if math.Abs(t.MADScale*(v-median)/mad) > madThreshold {
				outliers++
			}
		}
		a.Outlier = min(outliers, limit)
	}

	return a
}

// duplicates counts fully duplicated rows, raised to the largest duplicate
// count found in an identifier column.
func (s *Scorer) duplicates(d *dataset.Dataset) int {
	seen := make(map[string]struct{}, d.Rows())
	dups := 0
	for i := 0; i < d.Rows(); i++ {
		key := d.RowKey(i)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}

	for _, c := range d.Columns() {
		if _, ok := keyColumns[strings.ToLower(c.Name())]; !ok {
			continue
		}
		keyDups := c.Len() - len(distinctWithNull(c))
		s.logger.Debug("key column duplicates", "column", c.Name(), "duplicates", keyDups)
		dups = max(dups, keyDups)
	}
	return dups
}

func distinctWithNull(c dataset.Column) map[string]struct{} {
	keys := make(map[string]struct{}, c.Len())
	for i := 0; i < c.Len(); i++ {
		keys[c.At(i).Key()] = struct{}{}
	}
	return keys
}

// log1p drops results that are not finite, e.g. for values below -1.
func log1p(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		l := math.Log1p(v)
		if math.IsNaN(l) || math.IsInf(l, 0) {
			continue
		}
		out = append(out, l)
	}
	return out
}
