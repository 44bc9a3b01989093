package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"parlift/internal/compiler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// PrintSummary renders one compilation run as a short styled report.
func (a *App) PrintSummary(summary *compiler.Summary) {
	if summary == nil {
		return
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("parlift compilation"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  files: %d  classes: %d  kernels: %d\n",
		summary.Files, summary.Classes, summary.KernelFiles)
	fmt.Fprintf(&b, "  binds: %d in / %d out  operations: %d (%s parallel, %s sequential)  method calls: %d\n",
		summary.InputBinds, summary.OutputBinds, summary.Operations,
		successStyle.Render(fmt.Sprintf("%d", summary.Parallel)),
		warnStyle.Render(fmt.Sprintf("%d", summary.Sequential)),
		summary.MethodCalls)

	for _, result := range summary.Results {
		if result.Err != nil {
			fmt.Fprintf(&b, "  %s %s: %v\n", errorStyle.Render("error"), result.Path, result.Err)
			continue
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "  %s %s\n", warnStyle.Render("warning"), warning)
		}
	}

	b.WriteString("  ")
	b.WriteString(statusStyle.Render(fmt.Sprintf("completed in %s", summary.Duration.Round(time.Millisecond))))
	fmt.Println(b.String())
}
