// Package testutil provides testing utilities for embedb.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random embeddings, skewed metadata
// distributions, and complete record batches.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 128)
//	rng.FillUniform(vec) // uniform [0, 1)
//
// # Record Batches
//
//	rs := rng.RecordSet(1000, 128)
//	// valid parallel sequences, Zipf-distributed categories, sparse scores
package testutil
