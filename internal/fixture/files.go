// Package fixture scaffolds ephemeral loom projects for integration tests.
package fixture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileTree describes a directory of project files. Keys with a known file
// extension map to file contents; every other key is a subdirectory whose
// value must be another FileTree (or map[string]any of the same shape).
//
// Contents for .sql, .csv and .md files must be strings and are written
// verbatim. Contents for .yml/.yaml files may be strings (written verbatim)
// or any value that yaml.Marshal accepts.
type FileTree map[string]any

// WriteTree writes the tree under dir, creating dir if needed.
func WriteTree(dir string, tree FileTree) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}
	for name, value := range tree {
		path := filepath.Join(dir, name)
		switch {
		case isRawFile(name):
			content, ok := value.(string)
			if !ok {
				return fmt.Errorf("fixture file %s: content must be a string, got %T", name, value)
			}
			if err := writeFileAtomic(path, []byte(content)); err != nil {
				return err
			}
		case isYAMLFile(name):
			data, err := yamlContent(value)
			if err != nil {
				return fmt.Errorf("fixture file %s: %w", name, err)
			}
			if err := writeFileAtomic(path, data); err != nil {
				return err
			}
		default:
			sub, err := asTree(value)
			if err != nil {
				return fmt.Errorf("fixture dir %s: %w", name, err)
			}
			if err := WriteTree(path, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func isRawFile(name string) bool {
	switch filepath.Ext(name) {
	case ".sql", ".csv", ".md":
		return true
	}
	return false
}

func isYAMLFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

func yamlContent(value any) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return data, nil
}

func asTree(value any) (FileTree, error) {
	switch v := value.(type) {
	case FileTree:
		return v, nil
	case map[string]any:
		return FileTree(v), nil
	default:
		return nil, fmt.Errorf("expected nested file tree, got %T", value)
	}
}

// TreeFromYAML parses a YAML manifest into a FileTree. The manifest uses the
// same shape as FileTree: file keys map to string contents, directory keys
// map to nested mappings.
func TreeFromYAML(data []byte) (FileTree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return FileTree(raw), nil
}

// CopyFile copies a file from a data directory into a scaffolded project,
// e.g. from tests/data into models/. Destination directories are created.
func CopyFile(srcDir, src, dstDir string, dst ...string) error {
	in, err := os.Open(filepath.Join(srcDir, src))
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	target := filepath.Join(append([]string{dstDir}, dst...)...)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// RemoveFile removes a file from a scaffolded project.
func RemoveFile(dir string, parts ...string) error {
	return os.Remove(filepath.Join(append([]string{dir}, parts...)...))
}

// writeFileAtomic writes data via a temp file in the same directory followed
// by a rename, so a crashed test run never leaves a half-written fixture.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to final: %w", err)
	}
	tmpPath = ""
	return nil
}
