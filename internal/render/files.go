package render

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format is an output document type.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// ErrUnknownFormat is returned by ParseFormats for an unsupported name.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormats parses a comma-separated format list, dropping duplicates.
func ParseFormats(s string) ([]Format, error) {
	var (
		out  []Format
		seen = map[Format]bool{}
	)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FormatJSON, FormatCSV, FormatHTML, FormatPNG:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrUnknownFormat)
	}
	return out, nil
}

// Write renders doc in format f.
func Write(w io.Writer, doc Document, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatCSV:
		return WriteCSV(w, doc)
	case FormatHTML:
		return WriteHTML(w, doc)
	case FormatPNG:
		return WritePNG(w, doc, DefaultPlot)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteFiles renders doc once per format into dir and returns the paths
// written. dir is created if needed.
func WriteFiles(dir string, doc Document, formats []Format, logger *slog.Logger) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(dir, FileName(doc.Name, string(f)))
		if err := writeFile(path, doc, f); err != nil {
			return paths, err
		}
		logger.Info("output written", "component", "render", "format", string(f), "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, doc Document, f Format) (err error) {
	tmp := path + ".tmp"
	//nolint:gosec // G304: path is built from the output dir and object name.
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := Write(out, doc, f); err != nil {
		_ = out.Close()
		return fmt.Errorf("render %s: %w", f, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
