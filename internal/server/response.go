package server

import "github.com/peekknuf/datatrust/internal/verify"

type ErrorResponse struct {
	Error string `json:"error"`
}

// VerifyResponse is the client facing shape of a verification report.
type VerifyResponse struct {
	IsVerified       bool            `json:"isVerified"`
	VerificationHash string          `json:"verificationHash"`
	DatasetHash      string          `json:"datasetHash"`
	QualityScore     float64         `json:"qualityScore"`
	Details          ResponseDetails `json:"details"`
}

type ResponseDetails struct {
	MissingValues     float64 `json:"missingValues"`
	AnomaliesDetected int     `json:"anomaliesDetected"`
	BiasScore         float64 `json:"biasScore"`
	PIIDetected       bool    `json:"piiDetected"`
	OverallQuality    float64 `json:"overallQuality"`
	Diversity         float64 `json:"diversity"`
	Duplicates        int     `json:"duplicates"`
	DatasetCID        string  `json:"datasetCID"`
	AnalysisReport    string  `json:"analysisReport"`
}

func newVerifyResponse(r *verify.Report, cid string) VerifyResponse {
	return VerifyResponse{
		IsVerified:       r.IsVerified,
		VerificationHash: r.VerificationHash,
		DatasetHash:      r.DatasetHash,
		QualityScore:     r.QualityScore,
		Details: ResponseDetails{
			MissingValues:     r.Details.Quality.MissingRatio * 100,
			AnomaliesDetected: r.Details.Quality.Anomalies,
			BiasScore:         r.Details.BiasScore,
			PIIDetected:       r.Details.PIIDetected,
			OverallQuality:    r.QualityScore,
			Diversity:         r.Details.Diversity,
			Duplicates:        r.Details.Quality.Duplicates,
			DatasetCID:        cid,
			AnalysisReport:    r.AnalysisReport,
		},
	}
}
