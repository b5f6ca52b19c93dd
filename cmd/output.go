package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Norgate-AV/spbuild/internal/backend"
	"github.com/Norgate-AV/spbuild/internal/codes"
)

var (
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	warningColor = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#6B7280")

	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// printResult prints diagnostics followed by a one-line summary
func printResult(w io.Writer, res *backend.BuildResult, verbose bool) {
	if verbose && res.Verbose != "" {
		fmt.Fprint(w, mutedStyle.Render(strings.TrimRight(res.Verbose, "\n"))+"\n")
	}

	if res.Warnings != "" {
		for _, line := range strings.Split(strings.TrimRight(res.Warnings, "\n"), "\n") {
			fmt.Fprintln(w, warningStyle.Render(line))
		}
	}

	if res.HasError {
		for _, line := range strings.Split(strings.TrimRight(res.Error, "\n"), "\n") {
			fmt.Fprintln(w, errorStyle.Render(line))
		}

		fmt.Fprintln(w, errorStyle.Render("Build failed: ")+codes.GetErrorMessage(res.Code))
		return
	}

	compiled := 0
	if res.Compile != nil {
		compiled = res.Compile.ScriptsCount
	}

	symbols := 0
	if res.Table != nil {
		symbols = len(res.Table.Entries)
	}

	summary := fmt.Sprintf("%s (%d units compiled, %d symbols)", filepath.Base(res.ModulePath), compiled, symbols)
	if res.Reused {
		summary += " unchanged"
	}

	fmt.Fprintln(w, successStyle.Render("Built ")+summary)

	if verbose {
		fmt.Fprintln(w, mutedStyle.Render("build "+res.BuildID))
	}
}
