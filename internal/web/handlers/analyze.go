package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/codenamed22/DupliGone/internal/config"
	"github.com/codenamed22/DupliGone/internal/constants"
	"github.com/codenamed22/DupliGone/internal/pipeline"
)

// Analyzer runs one batch. *pipeline.Analyzer implements it.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, images []pipeline.Image) (*pipeline.BatchReport, error)
}

// AnalyzeHandler deduplicates uploaded images.
type AnalyzeHandler struct {
	config   *config.Config
	analyzer Analyzer
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(cfg *config.Config, analyzer Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{
		config:   cfg,
		analyzer: analyzer,
	}
}

// readUploadedFiles reads every multipart file into memory. The file name
// (without directories) becomes the image ID.
func readUploadedFiles(files []*multipart.FileHeader) ([]pipeline.Image, error) {
	images := make([]pipeline.Image, 0, len(files))
	for _, fileHeader := range files {
		if err := func() error {
			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", fileHeader.Filename)
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %s", fileHeader.Filename)
			}

			images = append(images, pipeline.Image{
				ID:   filepath.Base(fileHeader.Filename),
				Data: data,
				Size: fileHeader.Size,
			})
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return images, nil
}

// Analyze handles a multipart upload of one batch and returns its report.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes())
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d MB", h.config.Web.MaxUploadMB))
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := append(r.MultipartForm.File[constants.FilesFormField], r.MultipartForm.File[constants.FilesArrayFormField]...)
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > h.config.Analysis.MaxBatchSize {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d files exceeds the limit of %d", len(files), h.config.Analysis.MaxBatchSize))
		return
	}

	images, err := readUploadedFiles(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.analyzer.AnalyzeBatch(r.Context(), images)
	if err != nil {
		status, message := analyzeErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("analyze: %s", sanitizeForLog(err.Error()))
		}
		respondError(w, status, message)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func analyzeErrorStatus(err error) (int, string) {
	var unreadable *pipeline.UnreadableImageError
	switch {
	case errors.Is(err, pipeline.ErrEmptyBatch), errors.Is(err, pipeline.ErrDuplicateID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.As(err, &unreadable), errors.Is(err, pipeline.ErrNoUsableImages):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "analysis cancelled"
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}
