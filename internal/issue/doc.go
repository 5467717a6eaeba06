// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Issue holds longer Markdown guidance for the failure
// classes forge reports most often (missing dependencies, unusable version
// control clients, failed compiler runs), rendered with glamour.
package issue
