package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/warren/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Options controls what Initialize writes.
type Options struct {
	Force    bool   // Overwrite an existing warren.yml
	Backend  string // redis or postgres
	Instance string
}

// templateData is what warren.yml.tmpl is rendered with.
type templateData struct {
	Backend  string
	Instance string
}

// Initialize writes a warren.yml into dir and returns its path.
// Without Force an existing file is left alone and an error is returned.
func Initialize(dir string, opts Options) (string, error) {
	path := filepath.Join(dir, config.DefaultPath)

	if !opts.Force {
		if err := CheckExisting(dir); err != nil {
			return "", err
		}
	}

	content, err := renderConfig(opts)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := validateCreatedFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// renderConfig fills the warren.yml template for the chosen backend
func renderConfig(opts Options) ([]byte, error) {
	data := templateData{Backend: opts.Backend, Instance: opts.Instance}
	if data.Backend == "" {
		data.Backend = config.BackendRedis
	}
	if data.Backend != config.BackendRedis && data.Backend != config.BackendPostgres {
		return nil, fmt.Errorf("invalid backend: %s (must be 'redis' or 'postgres')", data.Backend)
	}
	if data.Instance == "" {
		data.Instance = "default"
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/warren.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read warren.yml template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render warren.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// validateCreatedFile loads the written file the way every command will
func validateCreatedFile(path string) error {
	if _, err := config.Load(path, false); err != nil {
		return fmt.Errorf("created %s is not a valid configuration: %w", path, err)
	}
	return nil
}
