// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import "github.com/hashicorp/hcl/v2"

// IsDefined checks if an HCL expression was actually present in the source
// code. The HCL decoder populates omitted optional fields with non-nil,
// zero-width placeholder expressions, so a nil check is insufficient.
func IsDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	// A real attribute occupies bytes in the file; a placeholder has a
	// zero-width range where the start and end byte are the same.
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
