package profiler

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/peekknuf/datatrust/internal/config"
)

var pcaNamePattern = regexp.MustCompile(`^V\d+`)

// ColumnStats is the describe()-style summary of the numeric cells of one
// column. Std is the sample standard deviation (n-1) and is 0 below two
// values.
type ColumnStats struct {
	Name     string
	Count    int
	Distinct int
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
	Q25      float64
	Q50      float64
	Q75      float64
	Constant bool

	sorted []float64
}

// Summarize computes ColumnStats over already-coerced numeric values.
func Summarize(name string, values []float64) ColumnStats {
	s := ColumnStats{Name: name, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	s.sorted = append([]float64(nil), values...)
	sort.Float64s(s.sorted)

	s.Distinct = 1
	for i := 1; i < len(s.sorted); i++ {
		if s.sorted[i] != s.sorted[i-1] {
			s.Distinct++
		}
	}

	s.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		s.Std = stat.StdDev(values, nil)
	}
	s.Min = s.sorted[0]
	s.Max = s.sorted[len(s.sorted)-1]
	s.Q25 = Quantile(s.sorted, 0.25)
	s.Q50 = Quantile(s.sorted, 0.50)
	s.Q75 = Quantile(s.sorted, 0.75)
	s.Constant = allClose(values, values[0], 1e-5, 1e-8)
	return s
}

// Sorted returns the values in ascending order.
func (s ColumnStats) Sorted() []float64 {
	return s.sorted
}

// IsPCALike reports whether the column looks like the output of a
// dimensionality reduction: near-zero mean with unit-ish spread, or a
// V<digits> name.
func (s ColumnStats) IsPCALike(t config.Thresholds) bool {
	if HasPCAName(s.Name) {
		return true
	}
	return s.Count > 0 && math.Abs(s.Mean) < t.PCAMeanMax && s.Std > t.PCAStdMin && s.Std < t.PCAStdMax
}

// HasPCAName reports whether a column name looks like an anonymized
// component, e.g. V14.
func HasPCAName(name string) bool {
	return pcaNamePattern.MatchString(name)
}

// IsAmount reports whether the column is the monetary "amount" column that
// gets log-scaled before bound computation.
func (s ColumnStats) IsAmount() bool {
	return strings.ToLower(s.Name) == "amount"
}

// Quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks.
func Quantile(sortedVals []float64, quantile float64) float64 {
	if len(sortedVals) == 0 {
		return 0
	}

	if len(sortedVals) == 1 {
		return sortedVals[0]
	}

	index := quantile * float64(len(sortedVals)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedVals[lower]
	}

	weight := index - float64(lower)
	return sortedVals[lower]*(1-weight) + sortedVals[upper]*weight
}

// Median of unsorted values. Returns 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Quantile(sorted, 0.5)
}

// MAD is the median absolute deviation around center.
func MAD(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dev := make([]float64, len(values))
	copy(dev, values)
	floats.AddConst(-center, dev)
	for i, d := range dev {
		dev[i] = math.Abs(d)
	}
	return Median(dev)
}

// Skewness is the biased (population) skewness m3/m2^1.5 of values, without
// the small sample correction. It is NaN when the values have no spread.
func Skewness(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m2 := stat.Moment(2, values, nil)
	if m2 == 0 {
		return math.NaN()
	}
	return stat.Moment(3, values, nil) / math.Pow(m2, 1.5)
}

func allClose(values []float64, ref, rtol, atol float64) bool {
	for _, v := range values {
		if math.Abs(v-ref) > atol+rtol*math.Abs(ref) {
			return false
		}
	}
	return true
}

// Round rounds x to the given number of decimal places, halves to even.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(x*p) / p
}
