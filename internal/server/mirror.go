// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// vectorEntry describes one saved vector for diff/sync purposes: its
// descriptor and payload files, hashed so two directories can be
// compared without loading every tensor through steervec.Load.
type vectorEntry struct {
	Name string
	Size int64
	Hash string
}

// scanVectorDir lists the vector artifacts under dir, keyed by base name
// (without the .json/.pt extension). A missing directory yields no
// entries rather than an error, matching the semantics of a not-yet-used
// mirror target.
func scanVectorDir(dir string) ([]vectorEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []vectorEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		payload := filepath.Join(dir, name+".pt")
		info, err := os.Stat(payload)
		if err != nil {
			// Descriptor without a payload is not a usable artifact.
			continue
		}
		hash, err := hashFile(payload)
		if err != nil {
			continue
		}
		out = append(out, vectorEntry{Name: name, Size: info.Size(), Hash: hash})
	}
	return out, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VectorDiffRequest is the request body for POST /api/vectors/diff.
type VectorDiffRequest struct {
	// OtherDir is a second vectors directory to compare against the
	// server's configured one.
	OtherDir string `json:"otherDir"`
}

// VectorDiffEntry reports one vector present in only one of the two
// directories, or present in both with mismatching content.
type VectorDiffEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "missing_in_other", "missing_local", "outdated"
	Size   int64  `json:"size"`
}

// handleVectorDiff compares the server's vectors directory against
// another directory (e.g. one synced from a different host).
func (s *Server) handleVectorDiff(w http.ResponseWriter, r *http.Request) {
	var req VectorDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OtherDir == "" {
		writeError(w, http.StatusBadRequest, "missing required field: otherDir", "")
		return
	}

	local, err := scanVectorDir(s.config.VectorsDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to scan local vectors", err.Error())
		return
	}
	other, err := scanVectorDir(req.OtherDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to scan other vectors", err.Error())
		return
	}

	localMap := make(map[string]vectorEntry, len(local))
	for _, e := range local {
		localMap[e.Name] = e
	}
	otherMap := make(map[string]vectorEntry, len(other))
	for _, e := range other {
		otherMap[e.Name] = e
	}

	var diffs []VectorDiffEntry
	for name, e := range localMap {
		o, ok := otherMap[name]
		switch {
		case !ok:
			diffs = append(diffs, VectorDiffEntry{Name: name, Status: "missing_in_other", Size: e.Size})
		case o.Hash != e.Hash:
			diffs = append(diffs, VectorDiffEntry{Name: name, Status: "outdated", Size: e.Size})
		}
	}
	for name, e := range otherMap {
		if _, ok := localMap[name]; !ok {
			diffs = append(diffs, VectorDiffEntry{Name: name, Status: "missing_local", Size: e.Size})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Status != diffs[j].Status {
			return diffs[i].Status < diffs[j].Status
		}
		return diffs[i].Name < diffs[j].Name
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"diffs":    diffs,
		"inSync":   len(diffs) == 0,
		"local":    s.config.VectorsDir,
		"otherDir": req.OtherDir,
	})
}

// VectorSyncRequest is the request body for POST /api/vectors/pull.
type VectorSyncRequest struct {
	// OtherDir is copied FROM into the server's vectors directory.
	OtherDir string `json:"otherDir"`
	DryRun   bool   `json:"dryRun"`
}

// VectorSyncResult reports what a pull did or would do.
type VectorSyncResult struct {
	Copied  []string `json:"copied"`
	DryRun  bool     `json:"dryRun"`
	Message string   `json:"message"`
}

// handleVectorPull copies vectors present in OtherDir but missing or
// outdated locally into the server's vectors directory.
func (s *Server) handleVectorPull(w http.ResponseWriter, r *http.Request) {
	var req VectorSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OtherDir == "" {
		writeError(w, http.StatusBadRequest, "missing required field: otherDir", "")
		return
	}

	result, err := pullVectors(req.OtherDir, s.config.VectorsDir, req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pull failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// pullVectors copies any vector in srcDir that is missing or has
// different content in dstDir. copyVectorPair writes each file to a temp
// sibling and renames it into place, descriptor first and payload second,
// so neither file is ever seen half-written; the pair is not placed as a
// unit, and if the payload copy fails the new descriptor stays in dstDir.
func pullVectors(srcDir, dstDir string, dryRun bool) (*VectorSyncResult, error) {
	src, err := scanVectorDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	dst, err := scanVectorDir(dstDir)
	if err != nil {
		return nil, fmt.Errorf("scan destination: %w", err)
	}

	dstMap := make(map[string]vectorEntry, len(dst))
	for _, e := range dst {
		dstMap[e.Name] = e
	}

	var toCopy []vectorEntry
	for _, e := range src {
		if existing, ok := dstMap[e.Name]; !ok || existing.Hash != e.Hash {
			toCopy = append(toCopy, e)
		}
	}

	result := &VectorSyncResult{DryRun: dryRun}
	for _, e := range toCopy {
		result.Copied = append(result.Copied, e.Name)
	}

	if dryRun {
		result.Message = fmt.Sprintf("would copy %d vector(s)", len(toCopy))
		return result, nil
	}
	if len(toCopy) == 0 {
		result.Message = "destination is already in sync"
		return result, nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}
	for _, e := range toCopy {
		if err := copyVectorPair(srcDir, dstDir, e.Name); err != nil {
			return nil, fmt.Errorf("copy %s: %w", e.Name, err)
		}
	}
	result.Message = fmt.Sprintf("copied %d vector(s)", len(toCopy))
	return result, nil
}

func copyVectorPair(srcDir, dstDir, name string) error {
	for _, ext := range []string{".json", ".pt"} {
		data, err := os.ReadFile(filepath.Join(srcDir, name+ext))
		if err != nil {
			return err
		}
		tmp := filepath.Join(dstDir, name+ext+".tmp")
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		if err := os.Rename(tmp, filepath.Join(dstDir, name+ext)); err != nil {
			os.Remove(tmp)
			return err
		}
	}
	return nil
}
