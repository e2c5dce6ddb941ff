// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
	"github.com/lumen-ai/steerkit/pkg/steervec"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{
		ListenAddr:         "127.0.0.1:0",
		VectorsDir:         t.TempDir(),
		ReferenceHiddenDim: 8,
		ReferenceNumLayers: 2,
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func saveTestVector(t *testing.T, s *Server, name string, layer int) *steervec.SteeringVector {
	t.Helper()
	v, err := steervec.New(llmhost.Tensor{1, 0, 0, 0, 0, 0, 0, 0}, layer, "block", "fake", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Save(filepath.Join(s.config.VectorsDir, name)); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return v
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv.handleHealth, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

func TestHandleDiscoverMeanDiff(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/discover/mean-diff", bytes.NewBufferString(`{
		"positive": ["good one", "great one"],
		"negative": ["bad one", "awful one"],
		"layer": 0,
		"saveAs": "happy"
	}`))
	req.SetPathValue("method", "mean-diff")
	w := httptest.NewRecorder()

	srv.handleDiscover(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp DiscoverResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Saved == "" {
		t.Error("expected Saved to be set")
	}
	if _, err := steervec.Load(filepath.Join(srv.config.VectorsDir, "happy")); err != nil {
		t.Errorf("vector was not persisted: %v", err)
	}
}

func TestHandleDiscoverUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/api/discover/bogus", bytes.NewBufferString(`{}`))
	req.SetPathValue("method", "bogus")
	w := httptest.NewRecorder()

	srv.handleDiscover(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleListAndGetVector(t *testing.T) {
	srv := newTestServer(t)
	saveTestVector(t, srv, "alpha", 1)

	w := doJSON(t, srv.handleListVectors, "GET", "/api/vectors", nil)
	var listResp map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatal(err)
	}
	if len(listResp["vectors"]) != 1 || listResp["vectors"][0] != "alpha" {
		t.Errorf("vectors = %v, want [alpha]", listResp["vectors"])
	}

	req := httptest.NewRequest("GET", "/api/vectors/alpha", nil)
	req.SetPathValue("name", "alpha")
	w = httptest.NewRecorder()
	srv.handleGetVector(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleGetVectorRejectsPathTraversal(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/vectors/..%2Fescape", nil)
	req.SetPathValue("name", "../escape")
	w := httptest.NewRecorder()
	srv.handleGetVector(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleConflicts(t *testing.T) {
	srv := newTestServer(t)
	saveTestVector(t, srv, "a", 0)
	saveTestVector(t, srv, "b", 0)

	w := doJSON(t, srv.handleConflicts, "GET", "/api/vectors/conflicts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	conflicts, _ := resp["conflicts"].([]any)
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict between identical vectors, got %d", len(conflicts))
	}
}

func TestHandleApplyAndListAndRemoveSteering(t *testing.T) {
	srv := newTestServer(t)
	saveTestVector(t, srv, "v1", 0)

	w := doJSON(t, srv.handleApplySteering, "POST", "/api/steering/apply", ApplyRequest{
		Vectors: []string{"v1"},
		Gains:   []float32{2.0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv.handleListActiveSteering, "GET", "/api/steering/active", nil)
	var listResp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatal(err)
	}
	active, _ := listResp["active"].([]any)
	if len(active) != 1 {
		t.Fatalf("expected one active steering entry, got %d", len(active))
	}

	w = doJSON(t, srv.handleRemoveSteering, "POST", "/api/steering/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}

	w = doJSON(t, srv.handleListActiveSteering, "GET", "/api/steering/active", nil)
	json.Unmarshal(w.Body.Bytes(), &listResp)
	active, _ = listResp["active"].([]any)
	if len(active) != 0 {
		t.Fatalf("expected no active steering after clear, got %d", len(active))
	}
}

func TestHandleApplyGainCountMismatch(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv.handleApplySteering, "POST", "/api/steering/apply", ApplyRequest{
		Vectors: []string{"v1", "v2"},
		Gains:   []float32{1.0},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleGenerateUnsteered(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv.handleGenerate, "POST", "/api/generate", GenerateRequest{Prompt: "hello there"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Output == "" {
		t.Error("expected non-empty generation output")
	}
}

func TestHandleGenerateMissingPrompt(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv.handleGenerate, "POST", "/api/generate", GenerateRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleGenerateWithSteering(t *testing.T) {
	srv := newTestServer(t)
	saveTestVector(t, srv, "steer", 0)

	w := doJSON(t, srv.handleGenerate, "POST", "/api/generate", GenerateRequest{
		Prompt: "hello there",
		Vector: "steer",
		Gain:   1.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
