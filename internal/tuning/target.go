package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/peekknuf/datatrust/internal/relevance"
	"github.com/peekknuf/datatrust/internal/verify"
)

// Bounds is an inclusive range.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (b Bounds) Contains(x float64) bool {
	return x >= b.Min && x <= b.Max
}

// Target describes the report a dataset is expected to produce. Unset
// criteria are not scored.
type Target struct {
	Name         string          `yaml:"name"`
	Path         string          `yaml:"path"`
	Verified     *bool           `yaml:"verified,omitempty"`
	QualityScore *Bounds         `yaml:"quality_score,omitempty"`
	Anomalies    *Bounds         `yaml:"anomalies,omitempty"`
	Diversity    *Bounds         `yaml:"diversity,omitempty"`
	Relevance    relevance.Label `yaml:"relevance,omitempty"`
}

// Criteria is the number of criteria the target sets, i.e. its best
// possible score.
func (t Target) Criteria() int {
	n := 0
	if t.Verified != nil {
		n++
	}
	if t.QualityScore != nil {
		n++
	}
	if t.Anomalies != nil {
		n++
	}
	if t.Diversity != nil {
		n++
	}
	if t.Relevance != "" {
		n++
	}
	return n
}

// Evaluate counts the criteria of t that r satisfies.
func Evaluate(r *verify.Report, t Target) int {
	score := 0
	if t.Verified != nil && r.IsVerified == *t.Verified {
		score++
	}
	if t.QualityScore != nil && t.QualityScore.Contains(r.QualityScore) {
		score++
	}
	if t.Anomalies != nil && t.Anomalies.Contains(float64(r.Details.Quality.Anomalies)) {
		score++
	}
	if t.Diversity != nil && t.Diversity.Contains(r.Details.Diversity) {
		score++
	}
	if t.Relevance != "" && r.Details.Relevance == t.Relevance {
		score++
	}
	return score
}

type targetFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads a YAML file with a top level "targets" list.
func LoadTargets(path string) ([]Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	var tf targetFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets %s: %w", path, err)
	}
	if len(tf.Targets) == 0 {
		return nil, fmt.Errorf("no targets in %s", path)
	}
	for i, t := range tf.Targets {
		if t.Name == "" || t.Path == "" {
			return nil, fmt.Errorf("target %d: name and path are required", i)
		}
	}
	return tf.Targets, nil
}
