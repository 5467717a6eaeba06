// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ProjectNotFoundId Id = iota + 1
	ProjectParseErrorId
	InvalidDeclarationId
	DependenciesMissingId
	ToolUnavailableId
	VersionMismatchId
	FetchExhaustedId
	EnvNotConvergedId
	CompileFailedId
	LinkFailedId
	ScriptFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's Markdown with the given glamour style
// ("dark", "light", "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	projectNotFoundIssue = &Issue{
		id: ProjectNotFoundId,
		mdMsg: `
# No forge.cue found!

forge looks for a project descriptor named ` + "`forge.cue`" + ` in the current directory.

## Things you can try:
- Create a skeleton project:
~~~
$ forge init
~~~

- Or run forge from the project root:
~~~
$ cd /path/to/your/project
$ forge check-deps
~~~`,
	}

	projectParseErrorIssue = &Issue{
		id: ProjectParseErrorId,
		mdMsg: `
# Failed to parse forge.cue!

The project descriptor has a syntax error or does not match the expected schema.

## Common issues:
- Missing quotes around strings
- ` + "`name`" + ` or ` + "`version`" + ` left out
- ` + "`port.sources`" + ` given as a string instead of a list

## Minimal example:
~~~cue
name:    "myapp"
version: "0.1.0"
deps: ["stdlib_ext"]
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidDeclarationIssue = &Issue{
		id: InvalidDeclarationId,
		mdMsg: `
# Invalid dependency declaration

Every entry in ` + "`deps`" + ` must take one of these shapes:

~~~cue
deps: [
  "app",                                  // any version
  ["app", "1\\.2\\..*"],                  // version regex
  ["app", ".*", {git: "URL", branch: "main"}],
  {app: "other", version: "2.*", source: {hg: "URL", rev: "tip"}},
]
~~~

## Things to check:
- Each application is declared only once
- The version pattern is a valid regular expression
- The source names a known backend: git, hg, bzr or svn`,
	}

	dependenciesMissingIssue = &Issue{
		id: DependenciesMissingId,
		mdMsg: `
# Dependencies missing

Some declared dependencies are not installed and cannot be fetched because they
have no source.

## Things you can try:
- Add a source to the declaration so ` + "`forge get-deps`" + ` can fetch it
- Install the package system-wide and list its parent directory in ` + "`lib_dirs`" + `
  or the ` + "`FORGE_LIBS`" + ` environment variable`,
	}

	toolUnavailableIssue = &Issue{
		id: ToolUnavailableId,
		mdMsg: `
# Version control client unavailable

A dependency source needs a version control client that is not on PATH or is
older than forge supports.

## Minimum client versions:
| Backend | Command | Minimum |
|---------|---------|---------|
| git     | git     | 1.5     |
| hg      | hg      | 1.5     |
| bzr     | bzr     | 2.0     |
| svn     | svn     | 1.6     |`,
	}

	versionMismatchIssue = &Issue{
		id: VersionMismatchId,
		mdMsg: `
# Dependency version mismatch

A dependency directory exists but the package inside does not match the
declared name or version pattern.

## Things you can try:
- Remove the stale copy and fetch again:
~~~
$ forge delete-deps
$ forge get-deps
~~~
- Relax the version pattern in forge.cue`,
	}

	fetchExhaustedIssue = &Issue{
		id: FetchExhaustedId,
		mdMsg: `
# Failed to fetch dependency

Cloning the repository failed on every attempt.

## Things to check:
- The repository URL is reachable from this machine
- Your credentials for the remote are set up
- The ` + "`fetch.backoff`" + ` setting in your config if the remote is rate limited`,
	}

	envNotConvergedIssue = &Issue{
		id: EnvNotConvergedId,
		mdMsg: `
# Build environment did not converge

Variable references in ` + "`port.env`" + ` keep expanding. This usually means two
variables refer to each other.

## Example of a cycle:
~~~cue
env: [
  {key: "A", value: "$B"},
  {key: "B", value: "$A"},
]
~~~`,
	}

	compileFailedIssue = &Issue{
		id: CompileFailedId,
		mdMsg: `
# Compilation failed

The C or C++ compiler exited with an error. Its output is shown above.

## Things you can try:
- Inspect the resolved environment:
~~~
$ forge env
~~~
- Override the compiler with ` + "`CC`" + ` or ` + "`CXX`" + ` in ` + "`port.env`",
	}

	linkFailedIssue = &Issue{
		id: LinkFailedId,
		mdMsg: `
# Linking failed

The linker exited with an error while producing the shared library.

## Things to check:
- Missing libraries in ` + "`LDFLAGS`" + `
- ` + "`DRV_LDFLAGS`" + ` suits your platform (see ` + "`forge env`" + `)`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Build script failed

The pre-compile or cleanup script exited with an error, or the pre-compile
script did not create its sentinel file.

## Things you can try:
- Run the script by hand from the project root
- Check that ` + "`port.pre_script.sentinel`" + ` names the file the script creates`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

forge could not read its configuration file.

## Things you can try:
- Show the effective configuration:
~~~
$ forge config show
~~~
- Check the file for CUE syntax errors:
~~~
$ cue vet ~/.config/forge/config.cue
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	issues = map[Id]*Issue{
		projectNotFoundIssue.Id():     projectNotFoundIssue,
		projectParseErrorIssue.Id():   projectParseErrorIssue,
		invalidDeclarationIssue.Id():  invalidDeclarationIssue,
		dependenciesMissingIssue.Id(): dependenciesMissingIssue,
		toolUnavailableIssue.Id():     toolUnavailableIssue,
		versionMismatchIssue.Id():     versionMismatchIssue,
		fetchExhaustedIssue.Id():      fetchExhaustedIssue,
		envNotConvergedIssue.Id():     envNotConvergedIssue,
		compileFailedIssue.Id():       compileFailedIssue,
		linkFailedIssue.Id():          linkFailedIssue,
		scriptFailedIssue.Id():        scriptFailedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, is)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
