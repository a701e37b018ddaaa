package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenamed22/DupliGone/internal/config"
	"github.com/codenamed22/DupliGone/internal/pipeline"
)

type stubAnalyzer struct {
	err    error
	called bool
	got    []pipeline.Image
}

func (s *stubAnalyzer) AnalyzeBatch(_ context.Context, images []pipeline.Image) (*pipeline.BatchReport, error) {
	s.called = true
	s.got = images
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.BatchReport{RunID: "run"}, nil
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, field string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for x := 0; x < 48; x++ {
		for y := 0; y < 48; y++ {
			img.SetGray(x, y, color.Gray{Y: shade + uint8((x*y)%32)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyze_WithPipeline(t *testing.T) {
	cfg := config.Default()
	handler := NewAnalyzeHandler(cfg, pipeline.New(cfg.Pipeline()))

	data := pngBytes(t, 40)
	req := multipartRequest(t, "files",
		upload{"holiday/a.png", data},
		upload{"b.png", data},
	)
	rec := httptest.NewRecorder()
	handler.Analyze(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report pipeline.BatchReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"a.png", "b.png"}, report.Clusters[0].Members)
	assert.Equal(t, "a.png", report.Clusters[0].Best)
	assert.Equal(t, []string{"b.png"}, report.Recommendations.DeletedIDs)
	assert.Equal(t, int64(len(data)), report.Recommendations.EstimatedBytesReclaimed)
}

func TestAnalyze_PassesFileSizes(t *testing.T) {
	stub := &stubAnalyzer{}
	handler := NewAnalyzeHandler(config.Default(), stub)

	rec := httptest.NewRecorder()
	handler.Analyze(rec, multipartRequest(t, "files", upload{"x.jpg", []byte("12345")}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.got, 1)
	assert.Equal(t, "x.jpg", stub.got[0].ID)
	assert.Equal(t, int64(5), stub.got[0].Size)
	assert.Equal(t, []byte("12345"), stub.got[0].Data)
}

func TestAnalyze_BracketedFieldName(t *testing.T) {
	stub := &stubAnalyzer{}
	handler := NewAnalyzeHandler(config.Default(), stub)

	rec := httptest.NewRecorder()
	handler.Analyze(rec, multipartRequest(t, "files[]", upload{"a.jpg", []byte("1")}, upload{"b.jpg", []byte("2")}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.got, 2)
	assert.Equal(t, "a.jpg", stub.got[0].ID)
	assert.Equal(t, "b.jpg", stub.got[1].ID)
}

func TestAnalyze_NoFiles(t *testing.T) {
	stub := &stubAnalyzer{}
	handler := NewAnalyzeHandler(config.Default(), stub)

	rec := httptest.NewRecorder()
	handler.Analyze(rec, multipartRequest(t, "other", upload{"a.png", []byte("x")}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no files provided", decodeError(t, rec))
	assert.False(t, stub.called)
}

func TestAnalyze_NotMultipart(t *testing.T) {
	handler := NewAnalyzeHandler(config.Default(), &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Analyze(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_BatchTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.MaxBatchSize = 2
	stub := &stubAnalyzer{}
	handler := NewAnalyzeHandler(cfg, stub)

	files := make([]upload, 3)
	for i := range files {
		files[i] = upload{fmt.Sprintf("%d.png", i), []byte("x")}
	}
	rec := httptest.NewRecorder()
	handler.Analyze(rec, multipartRequest(t, "files", files...))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, stub.called)
}

func TestAnalyze_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"duplicate id", fmt.Errorf("%w: %q", pipeline.ErrDuplicateID, "a"), http.StatusBadRequest},
		{"no usable images", pipeline.ErrNoUsableImages, http.StatusUnprocessableEntity},
		{"batch too large", fmt.Errorf("%w: 3 images, limit 2", pipeline.ErrBatchTooLarge), http.StatusRequestEntityTooLarge},
		{"unreadable", &pipeline.UnreadableImageError{ID: "a", Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewAnalyzeHandler(config.Default(), &stubAnalyzer{err: tc.err})

			rec := httptest.NewRecorder()
			handler.Analyze(rec, multipartRequest(t, "files", upload{"a.png", []byte("x")}))

			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestConfigHandler_Get(t *testing.T) {
	cfg := config.Default()
	cfg.Faces.Cascade = "/models/haarcascade_frontalface_default.xml"

	rec := httptest.NewRecorder()
	NewConfigHandler(cfg).Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ConfigResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 8, resp.HashSize)
	assert.Equal(t, 0.05, resp.EpsFloor)
	assert.Equal(t, "kneedle", resp.Knee)
	assert.True(t, resp.FaceDetection)
	assert.Equal(t, 100, resp.MaxBatchSize)
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "ab", sanitizeForLog("a\r\nb"))
}
