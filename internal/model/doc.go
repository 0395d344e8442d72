// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the Go struct representation of a gridhost source
// artifact. Its core purpose is to turn the raw HCL of one file into a
// strongly-typed, in-memory model that the analyzer, the evaluator and the
// application registry can work with.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - File: The root container for one artifact. It carries the artifact name,
//     the declared package and every function and service found in the file.
//
//   - Function: A named expression with typed parameters. The function called
//     "main" is the entry point used when a single file is run as a script.
//
//   - Service: A group of HTTP resources mounted under a common base path.
//     The base path is also the scope of the session cookie.
//
//   - Resource: One route of a service. It declares how the request binds to
//     a session and the expressions that produce the response.
//
// Expressions are kept unevaluated (hcl.Expression). They are checked by the
// semantic analyzer at deploy time and evaluated per request.
package model
