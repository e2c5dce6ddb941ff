// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package steervec

import "errors"

// Sentinel errors. Callers should match against these with errors.Is;
// each is also reachable via errors.As against the richer wrapper types
// below for structured context (expected vs. actual dimension, path, ...).
var (
	// ErrEmptyTensor is returned when constructing a vector from a
	// zero-length or nil tensor.
	ErrEmptyTensor = errors.New("steervec: tensor must be non-empty")

	// ErrShapeMismatch is returned when hidden_dim disagrees with the
	// tensor's actual length.
	ErrShapeMismatch = errors.New("steervec: hidden_dim does not match tensor length")

	// ErrNonFinite is returned when a tensor contains NaN or Inf.
	ErrNonFinite = errors.New("steervec: tensor contains NaN or Inf")

	// ErrNegativeLayer is returned for a negative layer_index.
	ErrNegativeLayer = errors.New("steervec: layer_index must be non-negative")

	// ErrIncompatibleDim is returned by Validate when a vector cannot be
	// applied to a model with a given hidden_dim.
	ErrIncompatibleDim = errors.New("steervec: hidden_dim incompatible with target model")

	// ErrMissingFile is returned when one half of the descriptor/payload
	// pair is absent.
	ErrMissingFile = errors.New("steervec: descriptor or payload file missing")

	// ErrCorruptDescriptor is returned when the descriptor cannot be
	// parsed or is missing a required key.
	ErrCorruptDescriptor = errors.New("steervec: descriptor is corrupt or incomplete")

	// ErrInconsistentPair is returned when the payload's element count
	// disagrees with the descriptor's hidden_dim. The payload is always
	// float32 and carries no element type, so the descriptor's dtype is
	// not compared against it.
	ErrInconsistentPair = errors.New("steervec: payload inconsistent with descriptor")

	// ErrUnknownSchema is returned when the descriptor's schema_version is
	// newer than this implementation understands.
	ErrUnknownSchema = errors.New("steervec: unsupported schema_version")
)

// ValidationError reports a bad shape, range, or non-finite value.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string { return "steervec: " + e.Op + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// CompatibilityError reports a hidden_dim mismatch between a vector and
// the model it is being applied to. A model_fingerprint mismatch is not
// reported as an error.
type CompatibilityError struct {
	Expected int
	Actual   int
	Err      error
}

func (e *CompatibilityError) Error() string {
	return "steervec: incompatible: " + e.Err.Error()
}
func (e *CompatibilityError) Unwrap() error { return e.Err }

// IOError reports a failure reading or writing the two-file persistence
// format.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return "steervec: " + e.Path + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }
