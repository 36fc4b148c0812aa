package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/logging"
	"github.com/peekknuf/datatrust/internal/pii"
	"github.com/peekknuf/datatrust/internal/verify"
)

type noEntities struct{}

func (noEntities) Entities(string) ([]pii.Entity, error) { return nil, nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	v := verify.New(verify.WithRecognizer(noEntities{}), verify.WithLogger(logging.Discard()))
	ts := httptest.NewServer(New(v, logging.Discard()).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, url, filename, content string, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/verify", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const salesCSV = "id,price,region\n1,10.5,north\n2,11,south\n3,,north\n"

func TestVerifyUpload(t *testing.T) {
	ts := newTestServer(t)
	resp := upload(t, ts.URL, "sales.csv", salesCSV, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	out := decode[VerifyResponse](t, resp)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, out.DatasetHash)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, out.VerificationHash)
	assert.Equal(t, out.QualityScore, out.Details.OverallQuality)
	assert.InDelta(t, 11.0, out.Details.MissingValues, 1e-9)
	assert.Equal(t, "ipfs://"+strings.TrimPrefix(dataset.Fingerprint([]byte(salesCSV)), "0x")[:16], out.Details.DatasetCID)
	assert.True(t, strings.HasPrefix(out.Details.AnalysisReport, "ipfs://dummy-cid/"))
}

func TestVerifyUploadUsesNameField(t *testing.T) {
	ts := newTestServer(t)
	plain := decode[VerifyResponse](t, upload(t, ts.URL, "data.csv", "a,b\n1,2\n3,4\n", nil))
	named := decode[VerifyResponse](t, upload(t, ts.URL, "data.csv", "a,b\n1,2\n3,4\n", map[string]string{"name": "creditcard"}))

	assert.Equal(t, 87.0, plain.QualityScore)
	assert.Equal(t, 88.5, named.QualityScore)
	assert.Equal(t, plain.DatasetHash, named.DatasetHash)
}

func TestVerifyUploadErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		message  string
	}{
		{"missing file", "", "", http.StatusBadRequest, "No file part"},
		{"unsupported", "notes.txt", "hello", http.StatusBadRequest, "Unsupported file format"},
		{"legacy excel", "book.xls", "x", http.StatusBadRequest, "Unsupported file format"},
		{"unparseable", "broken.json", "{not json", http.StatusInternalServerError, "failed to parse dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, ts.URL, tt.filename, tt.content, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			out := decode[ErrorResponse](t, resp)
			assert.Contains(t, out.Error, tt.message)
		})
	}
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	upload(t, ts.URL, "sales.csv", salesCSV, nil)
	upload(t, ts.URL, "broken.json", "{", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `datatrust_verifications_total{outcome="error"} 1`)
	assert.Contains(t, string(body), "datatrust_verification_duration_seconds_count 2")
	assert.Contains(t, string(body), "datatrust_quality_score_count 1")
}

func TestDatasetCID(t *testing.T) {
	assert.Equal(t, "ipfs://0123456789abcdef", datasetCID("0x0123456789abcdef0011"))
	assert.Equal(t, "ipfs://abc", datasetCID("0xabc"))
}
