// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/issue"
	"github.com/forgebuild/forge/pkg/deps"
	"github.com/forgebuild/forge/pkg/native"
	"github.com/forgebuild/forge/pkg/project"
)

// issueRules maps error sentinels to their remediation guide. The first
// matching rule wins.
var issueRules = []struct {
	target error
	id     issue.Id
}{
	{project.ErrNotFound, issue.ProjectNotFoundId},
	{project.ErrInvalid, issue.ProjectParseErrorId},
	{native.ErrInvalidEnvVar, issue.ProjectParseErrorId},
	{deps.ErrInvalidDeclaration, issue.InvalidDeclarationId},
	{deps.ErrMissingDependencies, issue.DependenciesMissingId},
	{deps.ErrToolUnavailable, issue.ToolUnavailableId},
	{deps.ErrVersionMismatch, issue.VersionMismatchId},
	{deps.ErrFetchExhausted, issue.FetchExhaustedId},
	{native.ErrNotConverged, issue.EnvNotConvergedId},
	{native.ErrScriptFailed, issue.ScriptFailedId},
	{native.ErrCompileFailed, issue.CompileFailedId},
	{native.ErrLinkFailed, issue.LinkFailedId},
	{config.ErrInvalidConfig, issue.ConfigLoadFailedId},
}

// issueFor returns the catalog entry explaining err, or 0.
func issueFor(err error) issue.Id {
	for _, rule := range issueRules {
		if errors.Is(err, rule.target) {
			return rule.id
		}
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderError prints err followed by the matching remediation guide.
func (app *App) renderError(w io.Writer, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("Error:"), formatErrorForDisplay(err, app.verbose))

	id := issueFor(err)
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(app.style)
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("!"), "failed to render guidance:", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// wrapProjectError adds the descriptor location to project load failures.
func wrapProjectError(dir string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("load project").
		WithResource(dir).
		Wrap(err)
	if errors.Is(err, project.ErrNotFound) {
		ctx.WithSuggestion("Run 'forge init' to create " + project.DescriptorName)
	}
	return ctx.BuildError()
}
