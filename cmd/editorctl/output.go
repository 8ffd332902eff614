package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	blockStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

type field struct {
	label string
	value any
}

// output writes data as JSON or YAML, or calls text for the styled form.
func output(w io.Writer, data any, text func(io.Writer)) error {
	switch strings.ToLower(outputFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "", "text":
		text(w)
		return nil
	}
	return fmt.Errorf("unknown output format %q", outputFormat)
}

func printFields(w io.Writer, fields ...field) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.label))
	}
	for _, f := range fields {
		label := labelStyle.Render(fmt.Sprintf("%-*s", width+1, f.label+":"))
		fmt.Fprintf(w, "%s %s\n", label, valueStyle.Render(fmt.Sprint(f.value)))
	}
}

func status(ok bool, good, bad string) string {
	if ok {
		return okStyle.Render("✓ " + good)
	}
	return errorStyle.Render("✗ " + bad)
}
