package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/carbonintel/internal/extract"
)

// maxLineBytes bounds one JSON Lines record
const maxLineBytes = 1 << 20

// snippetLine is the wire form of one ingestion input line
type snippetLine struct {
	Text       string `json:"text"`
	SourceURL  string `json:"source_url"`
	SourceName string `json:"source_name"`
	ObservedAt string `json:"observed_at"`
}

// ReadSnippetsFromFile reads snippets from a JSON Lines file
func ReadSnippetsFromFile(filePath string) ([]extract.Snippet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadSnippets(file)
}

// ReadSnippets reads one JSON snippet per line, skipping blank and #
// comment lines and dropping identical lines
func ReadSnippets(r io.Reader) ([]extract.Snippet, error) {
	var snippets []extract.Snippet
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate lines
		if seen[line] {
			continue
		}
		seen[line] = true

		var raw snippetLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		observed, err := ParseObserved(raw.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		snippets = append(snippets, extract.Snippet{
			Text:       raw.Text,
			SourceURL:  raw.SourceURL,
			SourceName: raw.SourceName,
			ObservedAt: observed,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return snippets, nil
}

// ParseObserved accepts RFC 3339 timestamps or bare dates; empty is zero
func ParseObserved(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid observed_at %q", s)
	}
	return t, nil
}
