// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lumen-ai/steerkit/pkg/compose"
	"github.com/lumen-ai/steerkit/pkg/discover"
	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// DiscoverRequest is the request body for POST /api/discover/{method}.
type DiscoverRequest struct {
	Positive  []string `json:"positive"`
	Negative  []string `json:"negative"`
	Layer     int      `json:"layer"`
	BatchSize int      `json:"batchSize,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	SaveAs    string   `json:"saveAs,omitempty"`
}

// DiscoverResponse is the response body for a successful discovery.
type DiscoverResponse struct {
	Metrics map[string]float64 `json:"metrics"`
	Notes   []string           `json:"notes,omitempty"`
	Saved   string             `json:"saved,omitempty"`
}

// ApplyRequest is the request body for POST /api/steering/apply.
type ApplyRequest struct {
	Vectors []string  `json:"vectors"`
	Gains   []float32 `json:"gains,omitempty"`
}

// GenerateRequest is the request body for POST /api/generate.
type GenerateRequest struct {
	Prompt string  `json:"prompt"`
	Vector string  `json:"vector,omitempty"`
	Gain   float32 `json:"gain,omitempty"`
}

// GenerateResponse is the response body for a successful generation.
type GenerateResponse struct {
	Output string `json:"output"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse represents a simple success message.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"architecture": s.model.Architecture(),
		"session_id":   s.model.SessionID(),
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDiscover runs one of steerkit's discovery methods against the
// server's reference model and, if requested, persists the result.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	opts := discover.CaptureOptions{BatchSize: req.BatchSize, MaxLength: req.MaxLength}

	var result discover.DiscoveryResult
	var err error
	switch method {
	case "mean-diff":
		result, err = discover.MeanDifference(r.Context(), s.refModel, req.Positive, req.Negative, req.Layer, opts)
	case "caa":
		result, err = discover.CAA(r.Context(), s.refModel, req.Positive, req.Negative, req.Layer, opts)
	case "probe":
		result, err = discover.LinearProbe(r.Context(), s.refModel, req.Positive, req.Negative, req.Layer, opts)
	default:
		writeError(w, http.StatusNotFound, "unknown discovery method", method)
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "discovery failed", err.Error())
		return
	}

	resp := DiscoverResponse{Metrics: result.Metrics, Notes: result.Notes}
	if req.SaveAs != "" {
		path := filepath.Join(s.config.VectorsDir, req.SaveAs)
		if err := result.Vector.Save(path); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save vector", err.Error())
			return
		}
		resp.Saved = path
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListVectors lists the saved vectors under the server's vectors
// directory by scanning for descriptor (.json) files.
func (s *Server) handleListVectors(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.config.VectorsDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]any{"vectors": []string{}})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list vectors directory", err.Error())
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vectors": names})
}

// handleGetVector returns one saved vector's descriptor.
func (s *Server) handleGetVector(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid vector name", name)
		return
	}

	v, err := steervec.Load(filepath.Join(s.config.VectorsDir, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "vector not found", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"layer_index":       v.LayerIndex(),
		"layer_name":        v.LayerName(),
		"model_fingerprint": v.ModelFingerprint(),
		"hidden_dim":        v.HiddenDim(),
		"dtype":             v.Dtype(),
		"magnitude":         v.Magnitude(),
		"metadata":          v.Metadata(),
	})
}

// handleConflicts scans every saved vector for high-similarity pairs.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	vectors, names, err := s.loadAllVectors()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load vectors", err.Error())
		return
	}
	if len(vectors) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"conflicts": []any{}})
		return
	}
	conflicts, err := compose.DetectConflicts(vectors, 0)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "conflict detection failed", err.Error())
		return
	}

	type namedConflict struct {
		A      string               `json:"a"`
		B      string               `json:"b"`
		Cosine float64              `json:"cosine"`
		Kind   compose.ConflictKind `json:"kind"`
	}
	out := make([]namedConflict, len(conflicts))
	for i, c := range conflicts {
		out[i] = namedConflict{A: names[c.I], B: names[c.J], Cosine: c.Cosine, Kind: c.Kind}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": out})
}

func (s *Server) loadAllVectors() ([]*steervec.SteeringVector, []string, error) {
	entries, err := os.ReadDir(s.config.VectorsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var vectors []*steervec.SteeringVector
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		v, err := steervec.Load(filepath.Join(s.config.VectorsDir, name))
		if err != nil {
			continue
		}
		vectors = append(vectors, v)
		names = append(names, name)
	}
	return vectors, names, nil
}

// handleApplySteering applies one or more saved vectors to the server's
// live SteeringModel and returns the resulting active-steering set.
func (s *Server) handleApplySteering(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Gains) != 0 && len(req.Gains) != len(req.Vectors) {
		writeError(w, http.StatusBadRequest, "gains count must match vectors count", "")
		return
	}

	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	vectors := make([]*steervec.SteeringVector, len(req.Vectors))
	gains := make([]float32, len(req.Vectors))
	for i, name := range req.Vectors {
		v, err := steervec.Load(filepath.Join(s.config.VectorsDir, name))
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("vector %q not found", name), err.Error())
			return
		}
		vectors[i] = v
		gains[i] = 1.0
		if len(req.Gains) > i {
			gains[i] = req.Gains[i]
		}
	}

	if err := s.model.ApplyMultipleSteering(vectors, gains); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "apply failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": s.model.ListActiveSteering()})
}

// handleListActiveSteering returns the server's currently active steering.
func (s *Server) handleListActiveSteering(w http.ResponseWriter, r *http.Request) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"active": s.model.ListActiveSteering()})
}

// handleRemoveSteering clears all active steering from the server's model.
func (s *Server) handleRemoveSteering(w http.ResponseWriter, r *http.Request) {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	s.model.RemoveSteering(nil)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "steering cleared"})
}

func defaultGenerationOptions() llmhost.GenerationOptions {
	return llmhost.GenerationOptions{MaxNewTokens: 64, Temperature: 1.0}
}

// handleGenerate runs a one-shot generation, optionally steered by a
// single saved vector applied only for the duration of the call.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing required field: prompt", "")
		return
	}

	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	if req.Vector == "" {
		out, err := s.model.Generate(r.Context(), []string{req.Prompt}, defaultGenerationOptions())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "generation failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, GenerateResponse{Output: out[0]})
		return
	}

	v, err := steervec.Load(filepath.Join(s.config.VectorsDir, req.Vector))
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("vector %q not found", req.Vector), err.Error())
		return
	}
	gain := req.Gain
	if gain == 0 {
		gain = 1.0
	}
	out, err := s.model.GenerateWithSteering(r.Context(), req.Prompt, v, gain, defaultGenerationOptions())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generation failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Output: out})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
