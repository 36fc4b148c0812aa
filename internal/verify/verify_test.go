package verify

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peekknuf/datatrust/internal/bias"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/logging"
	"github.com/peekknuf/datatrust/internal/pii"
	"github.com/peekknuf/datatrust/internal/quality"
	"github.com/peekknuf/datatrust/internal/relevance"
)

type noEntities struct{}

func (noEntities) Entities(string) ([]pii.Entity, error) { return nil, nil }

type panicky struct{}

func (panicky) Entities(string) ([]pii.Entity, error) { panic("model crashed") }

type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (m *memoryLedger) CheckAuthenticity(_ context.Context, datasetHash, _, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	first := !m.seen[datasetHash]
	m.seen[datasetHash] = true
	return first, nil
}

func numbers(name string, n int, f func(i int) float64) dataset.Column {
	vals := make([]dataset.Value, n)
	for i := range vals {
		vals[i] = dataset.Number(f(i))
	}
	return dataset.NewColumn(name, vals)
}

func texts(name string, n int, f func(i int) string) dataset.Column {
	vals := make([]dataset.Value, n)
	for i := range vals {
		vals[i] = dataset.Text(f(i))
	}
	return dataset.NewColumn(name, vals)
}

func build(t *testing.T, cols ...dataset.Column) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New(cols...)
	require.NoError(t, err)
	return d
}

func newVerifier(opts ...Option) *Verifier {
	base := []Option{WithRecognizer(noEntities{}), WithLogger(logging.Discard())}
	return New(append(base, opts...)...)
}

func TestQualityScore(t *testing.T) {
	heavy := quality.Report{IncorrectTypes: 3, Anomalies: 100, Duplicates: 1000}

	tests := []struct {
		name    string
		q       quality.Report
		pii     bool
		bias    bias.Label
		dataset string
		want    float64
	}{
		{"clean capped", quality.Report{}, false, bias.Balanced, "sample", 87},
		{"creditcard cap", quality.Report{}, false, bias.Balanced, "creditcard", 88.5},
		{"missing", quality.Report{MissingRatio: 0.5}, false, bias.Balanced, "sample", 75},
		{"every penalty", heavy, true, bias.Imbalanced, "sample", 81.85},
		{"faulty_sales duplicates", heavy, true, bias.Imbalanced, "faulty_sales", 82.65},
		{"floor at zero", quality.Report{MissingRatio: 1, IncorrectTypes: 40}, false, bias.Balanced, "sample", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, QualityScore(tt.q, tt.pii, tt.bias, tt.dataset), 1e-9)
		})
	}
}

func TestIsVerified(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		q     quality.Report
		rows  int
		rel   relevance.Label
		want  bool
	}{
		{"clean", 60, quality.Report{}, 100, relevance.Other, true},
		{"low score", 49.99, quality.Report{}, 100, relevance.Other, false},
		{"anomaly budget", 80, quality.Report{Anomalies: 2}, 100, relevance.Sales, false},
		{"fraud anomaly budget", 80, quality.Report{Anomalies: 2}, 100, relevance.FraudDetection, true},
		{"duplicate ratio", 80, quality.Report{Duplicates: 10}, 100, relevance.Other, false},
		{"duplicates below ratio", 80, quality.Report{Duplicates: 9}, 100, relevance.Other, true},
		{"no rows", 87, quality.Report{}, 0, relevance.Other, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVerified(tt.score, tt.q, tt.rows, tt.rel))
		})
	}
}

func TestEmptyDataset(t *testing.T) {
	r, err := newVerifier().Verify(context.Background(), build(t), "empty")
	require.NoError(t, err)

	assert.Equal(t, dataset.Fingerprint([]byte("\n")), r.DatasetHash)
	assert.Equal(t, 87.0, r.QualityScore)
	assert.True(t, r.IsVerified)
	assert.Equal(t, quality.Report{}, r.Details.Quality)
	assert.Equal(t, 0, r.Details.Metadata.Rows)
	assert.Empty(t, r.Details.Metadata.Columns)
	assert.Equal(t, relevance.Other, r.Details.Relevance)
	assert.True(t, r.Details.IsAuthentic)
}

func TestHashes(t *testing.T) {
	v := newVerifier()
	ctx := context.Background()
	id := numbers("id", 5, func(i int) float64 { return float64(i + 1) })
	score := numbers("score", 5, func(i int) float64 { return float64(i * 2) })

	a, err := v.Verify(ctx, build(t, id, score), "first")
	require.NoError(t, err)
	again, err := v.Verify(ctx, build(t, id, score), "first")
	require.NoError(t, err)
	swapped, err := v.Verify(ctx, build(t, score, id), "first")
	require.NoError(t, err)

	assert.Regexp(t, `^0x[0-9a-f]{64}$`, a.DatasetHash)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, a.VerificationHash)
	assert.Equal(t, a, again)
	assert.NotEqual(t, a.DatasetHash, swapped.DatasetHash)
	assert.Equal(t, "ipfs://dummy-cid/"+a.DatasetHash[len(a.DatasetHash)-8:], a.AnalysisReport)
}

func TestVerificationHashIgnoresRawValues(t *testing.T) {
	v := newVerifier()
	ctx := context.Background()

	a, err := v.Verify(ctx, build(t, numbers("id", 5, func(i int) float64 { return float64(i + 1) })), "first")
	require.NoError(t, err)
	b, err := v.Verify(ctx, build(t, numbers("id", 5, func(i int) float64 { return float64(i + 6) })), "second")
	require.NoError(t, err)

	assert.NotEqual(t, a.DatasetHash, b.DatasetHash)
	assert.Equal(t, a.VerificationHash, b.VerificationHash)
}

func TestCreditcardScenario(t *testing.T) {
	const rows = 300
	rng := rand.New(rand.NewPCG(7, 11))

	cols := []dataset.Column{numbers("Time", rows, func(i int) float64 { return float64(i * 3) })}
	for v := 1; v <= 28; v++ {
		cols = append(cols, numbers("V"+strconv.Itoa(v), rows, func(int) float64 { return rng.NormFloat64() }))
	}
	cols = append(cols,
		numbers("Amount", rows, func(int) float64 { return math.Exp(rng.NormFloat64()*1.2 + 3) }),
		numbers("Class", rows, func(i int) float64 {
			if i%50 == 0 {
				return 1
			}
			return 0
		}),
	)

	r, err := newVerifier().Verify(context.Background(), build(t, cols...), "creditcard")
	require.NoError(t, err)

	assert.Equal(t, relevance.FraudDetection, r.Details.Relevance)
	assert.LessOrEqual(t, r.QualityScore, 88.5)
	assert.Greater(t, r.QualityScore, 0.0)
	assert.LessOrEqual(t, r.Details.Quality.Anomalies, 6)
	assert.False(t, r.Details.PIIDetected)
	assert.Len(t, r.Details.Metadata.Columns, 31)
	assert.Equal(t, rows, r.Details.Metadata.Rows)
}

func TestFaultySalesScenario(t *testing.T) {
	const base, dups = 85, 15
	rowOf := func(i int) int {
		if i >= base {
			return i - base
		}
		return i
	}
	price := func(i int) float64 {
		switch rowOf(i) {
		case 20, 21:
			return 100000
		case 30:
			return -50
		}
		return 10 + float64(rowOf(i)%7)*1.5
	}

	d := build(t,
		numbers("id", base+dups, func(i int) float64 { return float64(rowOf(i)) }),
		numbers("price", base+dups, price),
		texts("product", base+dups, func(i int) string { return "p" + strconv.Itoa(rowOf(i)%5) }),
	)

	r, err := newVerifier().Verify(context.Background(), d, "faulty_sales")
	require.NoError(t, err)

	assert.Equal(t, dups, r.Details.Quality.Duplicates)
	assert.Greater(t, r.Details.Quality.Anomalies, 0)
	assert.LessOrEqual(t, r.Details.Quality.Anomalies, 2)
	assert.Equal(t, relevance.Sales, r.Details.Relevance)
	assert.False(t, r.IsVerified)
}

func TestAuthenticity(t *testing.T) {
	ledger := &memoryLedger{}
	v := newVerifier(WithAuthenticity(ledger))
	d := build(t, numbers("x", 3, func(i int) float64 { return float64(i) }))

	first, err := v.Verify(context.Background(), d, "sample")
	require.NoError(t, err)
	second, err := v.Verify(context.Background(), d, "sample")
	require.NoError(t, err)

	assert.True(t, first.Details.IsAuthentic)
	assert.False(t, second.Details.IsAuthentic)
	assert.Equal(t, first.VerificationHash, second.VerificationHash)
}

func TestAuthenticityError(t *testing.T) {
	boom := errors.New("ledger offline")
	v := newVerifier(WithAuthenticity(&memoryLedger{err: boom}))

	_, err := v.Verify(context.Background(), build(t), "sample")
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StageAuthenticity, verr.Stage)
	assert.Equal(t, "sample", verr.Dataset)
	assert.ErrorIs(t, err, boom)
}

func TestPanicIsRecovered(t *testing.T) {
	v := newVerifier(WithRecognizer(panicky{}))
	d := build(t, texts("owner", 2, func(i int) string { return []string{"John Smith", "Mary Jones"}[i] }))

	r, err := v.Verify(context.Background(), d, "people")
	assert.Nil(t, r)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StagePII, verr.Stage)
	assert.Contains(t, verr.Error(), "model crashed")
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newVerifier().Verify(ctx, build(t), "sample")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportJSON(t *testing.T) {
	r, err := newVerifier().Verify(context.Background(),
		build(t, texts("contact", 2, func(i int) string { return []string{"jane@example.com", "bob@example.org"}[i] })),
		"contacts")
	require.NoError(t, err)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, r.DatasetHash, out["datasetHash"])
	details := out["details"].(map[string]any)
	assert.Equal(t, true, details["pii_detected"])
	assert.Equal(t, 2.0, details["pii_count"])
	assert.Contains(t, details, "metadata")
	assert.Equal(t, 87.0, r.QualityScore)
}
