// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the hot paths of a forge run:
//   - forge.cue parsing and schema validation
//   - dependency declaration normalization and classification
//   - build environment composition
//   - source expansion and the up-to-date check of a native build
//
// To collect a CPU profile for PGO, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
