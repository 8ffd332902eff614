package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/newsroom/internal/config"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

const header = "# Newsroom Configuration Example\n# Copy this file to config.yaml and customize as needed.\n# Storage credentials can also come from STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY.\n\n"

func generate() ([]byte, error) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return append([]byte(header), yamlData...), nil
}

func main() {
	output, err := generate()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error generating YAML: "+err.Error()))
		os.Exit(1)
	}

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		os.Stdout.Write(output)
		return
	}
	if err := os.WriteFile(outputFile, output, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error writing file: "+err.Error()))
		os.Exit(1)
	}
	fmt.Println(okStyle.Render("Generated example config: " + outputFile))
}
