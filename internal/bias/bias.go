package bias

import (
	"log/slog"
	"math"

	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/profiler"
)

// Label is the coarse balance verdict.
type Label string

const (
	Balanced   Label = "Balanced"
	Imbalanced Label = "Imbalanced"
)

// Report holds the combined bias score in [0,1], its label, and the
// dataset's diversity in [0,1].
type Report struct {
	Label     Label   `json:"bias" yaml:"bias"`
	Score     float64 `json:"bias_score" yaml:"bias_score"`
	Diversity float64 `json:"diversity" yaml:"diversity"`
}

// Scorer computes bias and diversity. It is safe for concurrent use.
type Scorer struct {
	thresholds config.Thresholds
	logger     *slog.Logger
}

func NewScorer(t config.Thresholds, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{thresholds: t, logger: logger.WithGroup("bias")}
}

// Score combines categorical imbalance and numeric skew into one score, each
// weighted 0.5, and averages per-column diversity.
func (s *Scorer) Score(d *dataset.Dataset, roles profiler.Roles) Report {
	catBias := s.categoricalBias(d, roles)
	numBias, skewed := s.numericBias(d, roles)

	score := 0.5*catBias + 0.5*numBias
	score = math.Min(math.Max(score, 0), 1)

	label := Balanced
	if score >= s.thresholds.ImbalanceCutoff {
		label = Imbalanced
	}

	r := Report{
		Label:     label,
		Score:     score,
		Diversity: s.diversity(d, roles, skewed),
	}

	s.logger.Debug("bias checked",
		"categorical", catBias,
		"numeric", numBias,
		"score", r.Score,
		"label", r.Label,
		"diversity", r.Diversity)
	return r
}

// categoricalBias averages the share of the most frequent value across
// categorical columns with more than one distinct value.
func (s *Scorer) categoricalBias(d *dataset.Dataset, roles profiler.Roles) float64 {
	var sum float64
	var n int
	for _, name := range roles.Categorical {
		c, ok := d.Column(name)
		if !ok {
			continue
		}
		counts := c.Counts()
		if len(counts) <= 1 {
			continue
		}
		top, total := 0, 0
		for _, cnt := range counts {
			total += cnt
			top = max(top, cnt)
		}
		sum += float64(top) / float64(total)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// numericBias averages normalized absolute skewness over numeric columns
// with enough spread and values. It also returns the stats of the columns
// that qualified, keyed by name.
func (s *Scorer) numericBias(d *dataset.Dataset, roles profiler.Roles) (float64, map[string]profiler.ColumnStats) {
	t := s.thresholds
	qualified := make(map[string]profiler.ColumnStats)

	var sum float64
	var n int
	for _, name := range roles.Numeric {
		c, ok := d.Column(name)
		if !ok {
			continue
		}
		values := c.Floats()
		st := profiler.Summarize(name, values)
		if st.Distinct <= t.SkipMaxDistinct || st.Std <= t.BiasMinStd || st.Count < t.MinValidValues {
			continue
		}
		qualified[name] = st

		skew := math.Abs(profiler.Skewness(values))
		if math.IsNaN(skew) || math.IsInf(skew, 0) {
			continue
		}
		threshold := t.SkewThreshold
		if st.IsPCALike(t) {
			threshold = t.SkewThresholdPCA
		}
		sum += math.Min(skew/threshold, 1)
		n++
	}
	if n == 0 {
		return 0, qualified
	}
	return sum / float64(n), qualified
}

// diversity averages, over every column with data, the ratio of distinct
// values to the number of distinct values a column of its kind is expected
// to hold.
func (s *Scorer) diversity(d *dataset.Dataset, roles profiler.Roles, skewed map[string]profiler.ColumnStats) float64 {
	t := s.thresholds

	var sum float64
	var n int
	for _, c := range d.Columns() {
		total := c.NonNullCount()
		if total == 0 {
			continue
		}
		unique := c.Distinct()

		pca := profiler.HasPCAName(c.Name())
		if st, ok := skewed[c.Name()]; ok && !pca {
			pca = st.IsPCALike(t)
		}

		expected := float64(total)
		switch {
		case roles.IsCategorical(c.Name()) || unique <= 2:
			expected = math.Min(expected, float64(t.ExpectedUniqueCategorical))
		case pca:
			expected = math.Min(expected, float64(total)*t.ExpectedUniquePCAFactor)
		case t.ExpectedUniqueNumeric > 0:
			expected = math.Min(expected, float64(t.ExpectedUniqueNumeric))
		}

		limit := 1.0
		if pca {
			limit = t.DiversityCapPCA
		}
		contribution := math.Min(float64(unique)/expected, limit)

		s.logger.Debug("column diversity",
			"column", c.Name(),
			"unique", unique,
			"expected", expected,
			"contribution", contribution)

		sum += contribution
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
