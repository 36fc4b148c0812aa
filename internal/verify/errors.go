package verify

import "fmt"

// Stages of a verification pass, as reported in Error.
const (
	StageHash         = "hash"
	StageClassify     = "classify"
	StageQuality      = "quality"
	StagePII          = "pii"
	StageRelevance    = "relevance"
	StageBias         = "bias"
	StageAuthenticity = "authenticity"
)

// Error reports a failed verification pass.
type Error struct {
	Stage   string
	Dataset string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("verify %q failed at %s: %v", e.Dataset, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
