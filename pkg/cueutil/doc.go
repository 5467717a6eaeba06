// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE parsing helpers shared by the project
// descriptor and the global configuration.
//
// ParseAndDecode runs the schema-checked flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// LookupStrings is the unchecked counterpart: it compiles a file on its own
// and reads a handful of top-level string fields, which is all the
// dependency resolver needs from an installed package's descriptor.
//
// # Usage
//
//	//go:embed project_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Project](
//	    schemaBytes,
//	    data,
//	    "#Project",
//	    cueutil.WithFilename("forge.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes CUE path for debugging
//	}
//	return result.Value, nil
package cueutil
