package tuning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/pii"
	"github.com/peekknuf/datatrust/internal/verify"
)

// Search space.
var (
	IQRMultiplierPCABounds      = Bounds{Min: 4, Max: 12}
	MADThresholdPCABounds       = Bounds{Min: 10, Max: 30}
	ExpectedUniqueNumericBounds = Bounds{Min: 5000, Max: 20000}
)

const (
	DefaultMaxIterations = 50
	// stallLimit is how many iterations without improvement trigger a large
	// jump instead of a small step.
	stallLimit = 10
)

// Case is a loaded dataset and what it should score.
type Case struct {
	Target  Target
	Dataset *dataset.Dataset
}

// Result is the best configuration a run found.
type Result struct {
	RunID      string                    `json:"run_id"`
	Iterations int                       `json:"iterations"`
	BestScore  int                       `json:"best_score"`
	MaxScore   int                       `json:"max_score"`
	Reached    bool                      `json:"reached"`
	Thresholds config.Thresholds         `json:"-"`
	Reports    map[string]*verify.Report `json:"-"`
}

// Tuner searches the threshold space by random local steps, keeping the
// configuration whose reports satisfy the most target criteria.
type Tuner struct {
	cases         []Case
	base          config.Thresholds
	maxIterations int
	targetScore   int
	rng           *rand.Rand
	recognizer    pii.EntityRecognizer
	logger        *slog.Logger
}

type Option func(*Tuner)

func WithMaxIterations(n int) Option { return func(t *Tuner) { t.maxIterations = n } }

// WithTargetScore stops the search once the total score reaches n. The
// default is the sum of every target's criteria.
func WithTargetScore(n int) Option { return func(t *Tuner) { t.targetScore = n } }

func WithSeed(seed uint64) Option {
	return func(t *Tuner) { t.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithBase(th config.Thresholds) Option { return func(t *Tuner) { t.base = th } }

func WithRecognizer(r pii.EntityRecognizer) Option { return func(t *Tuner) { t.recognizer = r } }

func WithLogger(l *slog.Logger) Option { return func(t *Tuner) { t.logger = l } }

func New(cases []Case, opts ...Option) *Tuner {
	t := &Tuner{
		cases:         cases,
		base:          config.Default(),
		maxIterations: DefaultMaxIterations,
	}
	WithSeed(1)(t)
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.recognizer == nil {
		t.recognizer = pii.NewProseRecognizer()
	}
	if t.targetScore <= 0 {
		t.targetScore = t.MaxScore()
	}
	return t
}

// MaxScore is the best total score the cases allow.
func (t *Tuner) MaxScore() int {
	n := 0
	for _, c := range t.cases {
		n += c.Target.Criteria()
	}
	return n
}

// Run searches until the target score or the iteration limit is reached.
func (t *Tuner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		BestScore: -1,
		MaxScore:  t.MaxScore(),
	}
	log := t.logger.With("run", res.RunID)

	current := clampSearch(t.base)
	stalled := 0
	for res.Iterations < t.maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations++

		score, reports, err := t.evaluate(ctx, current)
		if err != nil {
			return nil, err
		}
		log.Info("iteration scored",
			"iteration", res.Iterations,
			"score", score,
			"max", res.MaxScore,
			"iqr_multiplier_pca", current.IQRMultiplierPCA,
			"mad_threshold_pca", current.MADThresholdPCA,
			"expected_unique_numeric", current.ExpectedUniqueNumeric)

		if score > res.BestScore {
			res.BestScore = score
			res.Thresholds = current
			res.Reports = reports
			stalled = 0
		} else {
			stalled++
		}

		if score >= t.targetScore {
			res.Reached = true
			break
		}

		current = t.step(current, stalled >= stallLimit)
		if stalled >= stallLimit {
			stalled = 0
		}
	}
	return res, nil
}

func (t *Tuner) evaluate(ctx context.Context, th config.Thresholds) (int, map[string]*verify.Report, error) {
	v := verify.New(
		verify.WithThresholds(th),
		verify.WithRecognizer(t.recognizer),
		verify.WithLogger(t.logger))

	total := 0
	reports := make(map[string]*verify.Report, len(t.cases))
	for _, c := range t.cases {
		r, err := v.Verify(ctx, c.Dataset, c.Target.Name)
		if err != nil {
			return 0, nil, err
		}
		reports[c.Target.Name] = r
		total += Evaluate(r, c.Target)
	}
	return total, reports, nil
}

// step perturbs the searched thresholds. A jump takes larger steps.
func (t *Tuner) step(th config.Thresholds, jump bool) config.Thresholds {
	iqr, mad, lo, hi := 0.5, 2.0, 0.9, 1.1
	if jump {
		iqr, mad, lo, hi = 2.0, 5.0, 0.5, 1.5
	}
	th.IQRMultiplierPCA += t.uniform(-iqr, iqr)
	th.MADThresholdPCA += t.uniform(-mad, mad)
	th.ExpectedUniqueNumeric = int(float64(th.ExpectedUniqueNumeric) * t.uniform(lo, hi))
	return clampSearch(th)
}

func (t *Tuner) uniform(lo, hi float64) float64 {
	return lo + t.rng.Float64()*(hi-lo)
}

func clampSearch(th config.Thresholds) config.Thresholds {
	th.IQRMultiplierPCA = clamp(th.IQRMultiplierPCA, IQRMultiplierPCABounds)
	th.MADThresholdPCA = clamp(th.MADThresholdPCA, MADThresholdPCABounds)
	th.ExpectedUniqueNumeric = int(clamp(float64(th.ExpectedUniqueNumeric), ExpectedUniqueNumericBounds))
	return th
}

func clamp(x float64, b Bounds) float64 {
	return math.Max(b.Min, math.Min(b.Max, x))
}

// WriteResults saves the best thresholds as best_config.yaml, one
// <name>_report.json per dataset and a summary.json into dir.
func WriteResults(dir string, res *Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := config.Save(filepath.Join(dir, "best_config.yaml"), res.Thresholds); err != nil {
		return err
	}
	for name, r := range res.Reports {
		if err := writeJSON(filepath.Join(dir, name+"_report.json"), r); err != nil {
			return err
		}
	}
	return writeJSON(filepath.Join(dir, "summary.json"), res)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
