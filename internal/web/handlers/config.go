package handlers

import (
	"net/http"

	"github.com/codenamed22/DupliGone/internal/config"
	"github.com/codenamed22/DupliGone/internal/quality"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	HashSize      int             `json:"hash_size"`
	MinNeighbors  int             `json:"min_neighbors"`
	Strictness    float64         `json:"strictness"`
	EpsFloor      float64         `json:"eps_floor"`
	MaxEps        float64         `json:"max_eps"`
	Knee          string          `json:"knee"`
	Weights       quality.Weights `json:"weights"`
	FaceDetection bool            `json:"face_detection"`
	MaxBatchSize  int             `json:"max_batch_size"`
	MaxUploadMB   int64           `json:"max_upload_mb"`
}

// Get returns the tuning the server analyzes batches with
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.config
	respondJSON(w, http.StatusOK, ConfigResponse{
		HashSize:      c.Analysis.HashSize,
		MinNeighbors:  c.Analysis.MinNeighbors,
		Strictness:    c.Tuner.Strictness,
		EpsFloor:      c.Tuner.Floor,
		MaxEps:        c.Tuner.MaxEps,
		Knee:          c.Tuner.Knee,
		Weights:       c.Quality.Weights,
		FaceDetection: c.Faces.Cascade != "",
		MaxBatchSize:  c.Analysis.MaxBatchSize,
		MaxUploadMB:   c.Web.MaxUploadMB,
	})
}
