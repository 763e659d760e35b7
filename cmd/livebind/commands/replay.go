package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/livebind/internal/scenario"
)

// Replay runs a scenario file and prints the list after every flush.
func Replay(args []string) error {
	return replay(os.Stdout, args)
}

func replay(w io.Writer, args []string) error {
	var (
		path          string
		minify, color bool
	)
	for _, arg := range args {
		switch {
		case arg == "--minify":
			minify = true
		case arg == "--color":
			color = true
		case strings.HasPrefix(arg, "--"):
			return fmt.Errorf("unknown flag: %s", arg)
		case path != "":
			return fmt.Errorf("unexpected argument: %s", arg)
		default:
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("scenario file required: replay <scenario.yaml>")
	}

	s, err := scenario.Load(path)
	if err != nil {
		return err
	}
	result, runErr := scenario.Run(context.Background(), s, scenario.Options{Minify: minify})
	if result == nil {
		return runErr
	}

	st := newStyles(color)
	header := fmt.Sprintf("%s (%s)", s.Name, s.Engine)
	if s.Description != "" {
		header += ": " + s.Description
	}
	fmt.Fprintln(w, st.title(header))

	for _, f := range result.Frames {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.step(fmt.Sprintf("step %d %s", f.Step, f.Op)))
		fmt.Fprintln(w, f.HTML)
	}

	m := result.Metrics
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.title("metrics"))
	for _, row := range []struct {
		label string
		value int64
	}{
		{"templates instantiated", m.TemplatesInstantiated},
		{"nodesets reused", m.NodesetsReused},
		{"items deleted", m.ItemsDeleted},
		{"nodes removed", m.NodesRemoved},
		{"flushes", m.FlushesProcessed},
	} {
		fmt.Fprintf(w, "  %-23s %s\n", row.label, st.metric(fmt.Sprint(row.value)))
	}

	return runErr
}

type styles struct {
	title, step, metric func(string) string
}

func newStyles(color bool) styles {
	if !color {
		plain := func(s string) string { return s }
		return styles{title: plain, step: plain, metric: plain}
	}
	return styles{
		title:  render(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))),
		step:   render(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))),
		metric: render(lipgloss.NewStyle().Foreground(lipgloss.Color("10"))),
	}
}

func render(style lipgloss.Style) func(string) string {
	return func(s string) string { return style.Render(s) }
}
