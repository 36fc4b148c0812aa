package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/peekknuf/datatrust/internal/bias"
	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/pii"
	"github.com/peekknuf/datatrust/internal/profiler"
	"github.com/peekknuf/datatrust/internal/quality"
	"github.com/peekknuf/datatrust/internal/relevance"
)

// AuthenticityChecker records a dataset sighting and reports whether the
// dataset hash is new.
type AuthenticityChecker interface {
	CheckAuthenticity(ctx context.Context, datasetHash, name, verificationHash string) (bool, error)
}

// Verifier runs every check over a dataset and combines the results. The
// checks only read shared state, so one Verifier may serve concurrent calls.
type Verifier struct {
	thresholds   config.Thresholds
	recognizer   pii.EntityRecognizer
	authenticity AuthenticityChecker
	logger       *slog.Logger

	quality   *quality.Scorer
	bias      *bias.Scorer
	pii       *pii.Detector
	relevance *relevance.Classifier
}

type Option func(*Verifier)

func WithThresholds(t config.Thresholds) Option {
	return func(v *Verifier) { v.thresholds = t }
}

// WithRecognizer replaces the default prose entity recognizer.
func WithRecognizer(r pii.EntityRecognizer) Option {
	return func(v *Verifier) { v.recognizer = r }
}

func WithAuthenticity(c AuthenticityChecker) Option {
	return func(v *Verifier) { v.authenticity = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

func New(opts ...Option) *Verifier {
	v := &Verifier{thresholds: config.Default()}
	for _, o := range opts {
		o(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}

	v.quality = quality.NewScorer(v.thresholds, v.logger)
	v.bias = bias.NewScorer(v.thresholds, v.logger)
	v.pii = pii.NewDetector(v.recognizer, v.logger)
	v.relevance = relevance.NewClassifier(v.logger)
	return v
}

// Thresholds returns the configuration the scorers were built with.
func (v *Verifier) Thresholds() config.Thresholds {
	return v.thresholds
}

// Verify runs a single pass over d. name is the dataset name used as a hint
// for relevance and calibration. Failures, including panics inside a check,
// are returned as *Error.
func (v *Verifier) Verify(ctx context.Context, d *dataset.Dataset, name string) (report *Report, err error) {
	stage := StageHash
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = &Error{Stage: stage, Dataset: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, &Error{Stage: stage, Dataset: name, Err: err}
	}

	log := v.logger.With("dataset", name)
	log.Debug("verifying", "rows", d.Rows(), "columns", d.Width())

	datasetHash := d.Hash()

	stage = StageClassify
	roles := profiler.Classify(d, v.thresholds)
	log.Debug("check completed", "check", stage,
		"numeric", len(roles.Numeric),
		"categorical", len(roles.Categorical),
		"string", len(roles.String),
		"unclassified", len(roles.Unclassified))

	stage = StageQuality
	q := v.quality.Score(d, roles)
	log.Debug("check completed", "check", stage, "anomalies", q.Anomalies, "duplicates", q.Duplicates)

	stage = StagePII
	p := v.pii.Detect(d)
	log.Debug("check completed", "check", stage, "detected", p.Detected, "count", p.Count)

	stage = StageRelevance
	rel := v.relevance.Classify(d, name)
	log.Debug("check completed", "check", stage, "relevance", rel)

	stage = StageBias
	b := v.bias.Score(d, roles)
	log.Debug("check completed", "check", stage, "bias", b.Label, "score", b.Score)

	score := QualityScore(q, p.Detected, b.Label, name)
	verified := IsVerified(score, q, d.Rows(), rel)

	stage = StageHash
	vhash, err := verificationHash(fingerprint{
		Quality:      q,
		PIIDetected:  p.Detected,
		Relevance:    rel,
		Bias:         b.Label,
		QualityScore: score,
	})
	if err != nil {
		return nil, &Error{Stage: stage, Dataset: name, Err: err}
	}

	authentic := true
	if v.authenticity != nil {
		stage = StageAuthenticity
		if err := ctx.Err(); err != nil {
			return nil, &Error{Stage: stage, Dataset: name, Err: err}
		}
		authentic, err = v.authenticity.CheckAuthenticity(ctx, datasetHash, name, vhash)
		if err != nil {
			return nil, &Error{Stage: stage, Dataset: name, Err: err}
		}
	}

	report = &Report{
		DatasetHash:      datasetHash,
		VerificationHash: vhash,
		IsVerified:       verified,
		QualityScore:     score,
		AnalysisReport:   analysisReport(datasetHash),
		Details: Details{
			Metadata: Metadata{
				Rows:    d.Rows(),
				Columns: d.Names(),
				SizeKB:  profiler.Round(float64(d.SizeBytes())/1024, 2),
			},
			Quality:     q,
			PIIDetected: p.Detected,
			PIICount:    p.Count,
			Relevance:   rel,
			IsAuthentic: authentic,
			Bias:        b.Label,
			BiasScore:   profiler.Round(b.Score, 2),
			Diversity:   profiler.Round(b.Diversity, 2),
		},
	}

	log.Info("dataset verified",
		"score", report.QualityScore,
		"verified", report.IsVerified,
		"relevance", rel)
	return report, nil
}

func verificationHash(f fingerprint) (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encoding verification fingerprint: %w", err)
	}
	return dataset.Fingerprint(b), nil
}
