package verify

import (
	"github.com/peekknuf/datatrust/internal/bias"
	"github.com/peekknuf/datatrust/internal/quality"
	"github.com/peekknuf/datatrust/internal/relevance"
)

// Report is the result of one verification pass.
type Report struct {
	DatasetHash      string  `json:"datasetHash" yaml:"datasetHash"`
	VerificationHash string  `json:"verificationHash" yaml:"verificationHash"`
	IsVerified       bool    `json:"isVerified" yaml:"isVerified"`
	QualityScore     float64 `json:"qualityScore" yaml:"qualityScore"`
	AnalysisReport   string  `json:"analysisReport" yaml:"analysisReport"`
	Details          Details `json:"details" yaml:"details"`
}

type Details struct {
	Metadata    Metadata        `json:"metadata" yaml:"metadata"`
	Quality     quality.Report  `json:"quality" yaml:"quality"`
	PIIDetected bool            `json:"pii_detected" yaml:"pii_detected"`
	PIICount    int             `json:"pii_count" yaml:"pii_count"`
	Relevance   relevance.Label `json:"relevance" yaml:"relevance"`
	IsAuthentic bool            `json:"is_authentic" yaml:"is_authentic"`
	Bias        bias.Label      `json:"bias" yaml:"bias"`
	BiasScore   float64         `json:"bias_score" yaml:"bias_score"`
	Diversity   float64         `json:"diversity" yaml:"diversity"`
}

type Metadata struct {
	Rows    int      `json:"rows" yaml:"rows"`
	Columns []string `json:"columns" yaml:"columns"`
	SizeKB  float64  `json:"size_kb" yaml:"size_kb"`
}

// fingerprint is the input of the verification hash. Field order is part of
// the hash.
type fingerprint struct {
	Quality      quality.Report  `json:"quality"`
	PIIDetected  bool            `json:"pii_detected"`
	Relevance    relevance.Label `json:"relevance"`
	Bias         bias.Label      `json:"bias"`
	QualityScore float64         `json:"quality_score"`
}
