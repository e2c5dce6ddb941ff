// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steervec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/lumen-ai/steerkit/pkg/llmhost"
)

// CurrentSchemaVersion is the schema_version steerkit writes. Descriptors
// with a smaller version are upgraded on load; a larger version is
// rejected with ErrUnknownSchema.
const CurrentSchemaVersion = 1

// payloadMagic tags the binary payload file so a stray file of the wrong
// shape fails loudly instead of silently.
const payloadMagic = "STVEC001"

// descriptor is the on-disk JSON record for everything except the raw
// tensor payload.
type descriptor struct {
	LayerIndex       int            `json:"layer_index"`
	LayerName        string         `json:"layer_name"`
	ModelFingerprint string         `json:"model_fingerprint"`
	HiddenDim        int            `json:"hidden_dim"`
	Dtype            string         `json:"dtype"`
	Metadata         map[string]any `json:"metadata"`
	SchemaVersion    int            `json:"schema_version"`
}

// DefaultFs is used by Save/Load when no explicit afero.Fs is supplied —
// the real OS filesystem.
var DefaultFs afero.Fs = afero.NewOsFs()

func descriptorPath(base string) string { return base + ".json" }
func payloadPath(base string) string    { return base + ".pt" }

// Save writes the two-part artifact (descriptor + payload) sharing the
// base name `path`. Each file is written to a temporary sibling and
// atomically renamed into place, so a reader never observes a partially
// written file. The descriptor is placed first and the payload second; if
// the payload cannot be placed, the descriptor is removed again (best
// effort).
func (v *SteeringVector) Save(path string) error {
	return v.SaveFs(DefaultFs, path)
}

// SaveFs is Save against an explicit filesystem, primarily for tests
// against afero.NewMemMapFs().
func (v *SteeringVector) SaveFs(fs afero.Fs, path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Path: dir, Err: err}
		}
	}

	desc := descriptor{
		LayerIndex:       v.layerIndex,
		LayerName:        v.layerName,
		ModelFingerprint: v.modelFingerprint,
		HiddenDim:        v.hiddenDim,
		Dtype:            v.dtype,
		Metadata:         v.metadata,
		SchemaVersion:    CurrentSchemaVersion,
	}
	descBytes, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return &IOError{Path: descriptorPath(path), Err: err}
	}

	payloadBytes := encodePayload(v.tensor)

	if err := atomicWrite(fs, descriptorPath(path), descBytes); err != nil {
		return err
	}
	if err := atomicWrite(fs, payloadPath(path), payloadBytes); err != nil {
		_ = fs.Remove(descriptorPath(path))
		return err
	}
	return nil
}

// atomicWrite writes data to a temp file alongside target and renames it
// into place, following the write-to-temp-then-rename discipline used
// throughout the teacher's own cache and sync code.
func atomicWrite(fs afero.Fs, target string, data []byte) error {
	tmp := target + ".tmp"
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Path: target, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmp)
		return &IOError{Path: target, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return &IOError{Path: target, Err: err}
	}
	if err := fs.Rename(tmp, target); err != nil {
		_ = fs.Remove(tmp)
		return &IOError{Path: target, Err: err}
	}
	return nil
}

// Load reads both files of the artifact sharing base name `path` and
// reconstructs a SteeringVector, re-running construction invariants.
func Load(path string) (*SteeringVector, error) {
	return LoadFs(DefaultFs, path)
}

// LoadFs is Load against an explicit filesystem.
func LoadFs(fs afero.Fs, path string) (*SteeringVector, error) {
	descBytes, err := afero.ReadFile(fs, descriptorPath(path))
	if err != nil {
		return nil, &IOError{Path: descriptorPath(path), Err: fmt.Errorf("%w: %v", ErrMissingFile, err)}
	}
	payloadBytes, err := afero.ReadFile(fs, payloadPath(path))
	if err != nil {
		return nil, &IOError{Path: payloadPath(path), Err: fmt.Errorf("%w: %v", ErrMissingFile, err)}
	}

	var desc descriptor
	if err := json.Unmarshal(descBytes, &desc); err != nil {
		return nil, &IOError{Path: descriptorPath(path), Err: fmt.Errorf("%w: %v", ErrCorruptDescriptor, err)}
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(descBytes, &present); err != nil {
		return nil, &IOError{Path: descriptorPath(path), Err: fmt.Errorf("%w: %v", ErrCorruptDescriptor, err)}
	}
	for _, key := range []string{"layer_index", "layer_name", "model_fingerprint", "hidden_dim", "dtype", "metadata", "schema_version"} {
		if _, ok := present[key]; !ok {
			return nil, &IOError{Path: descriptorPath(path), Err: fmt.Errorf("%w: missing key %q", ErrCorruptDescriptor, key)}
		}
	}
	if desc.HiddenDim <= 0 || desc.Dtype == "" {
		return nil, &IOError{Path: descriptorPath(path), Err: ErrCorruptDescriptor}
	}
	if desc.SchemaVersion > CurrentSchemaVersion {
		return nil, &IOError{Path: descriptorPath(path), Err: fmt.Errorf("%w: got %d, support up to %d", ErrUnknownSchema, desc.SchemaVersion, CurrentSchemaVersion)}
	}
	// desc.SchemaVersion < CurrentSchemaVersion: no upgrades are defined
	// yet (this is schema_version 1), so older payloads load as-is.

	tensor, err := decodePayload(payloadBytes)
	if err != nil {
		return nil, &IOError{Path: payloadPath(path), Err: err}
	}
	if len(tensor) != desc.HiddenDim {
		return nil, &IOError{Path: path, Err: fmt.Errorf("%w: descriptor says %d, payload has %d", ErrInconsistentPair, desc.HiddenDim, len(tensor))}
	}

	v, err := newVector(tensor, desc.LayerIndex, desc.LayerName, desc.ModelFingerprint, desc.Dtype, desc.Metadata)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if err := v.CheckInvariants(); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	return v, nil
}

// encodePayload serializes a 1-D tensor in steerkit's native binary
// format: an 8-byte magic, a uint64 element count, then little-endian
// float32 values. This stands in for the host framework's native
// tensor-save format (§6 of the spec) — steerkit's own payload is always
// float32 regardless of the originating dtype, which is recorded
// separately in the descriptor.
func encodePayload(t llmhost.Tensor) []byte {
	buf := make([]byte, 0, len(payloadMagic)+8+len(t)*4)
	buf = append(buf, payloadMagic...)
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(t)))
	buf = append(buf, countBuf[:]...)
	for _, f := range t {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		buf = append(buf, b[:]...)
	}
	return buf
}

func decodePayload(data []byte) (llmhost.Tensor, error) {
	if len(data) < len(payloadMagic)+8 {
		return nil, fmt.Errorf("%w: payload too short", ErrCorruptDescriptor)
	}
	if string(data[:len(payloadMagic)]) != payloadMagic {
		return nil, fmt.Errorf("%w: bad payload magic", ErrCorruptDescriptor)
	}
	off := len(payloadMagic)
	count := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	want := off + int(count)*4
	if len(data) != want {
		return nil, fmt.Errorf("%w: payload length does not match element count", ErrCorruptDescriptor)
	}
	out := make(llmhost.Tensor, count)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		out[i] = math.Float32frombits(bits)
		off += 4
	}
	return out, nil
}
