package prompts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type jsonItem struct {
	Name            string `json:"name,omitempty"`
	Text            string `json:"text"`
	Enabled         *bool  `json:"enabled,omitempty"`
	SkipSurrounding bool   `json:"skipSurrounding,omitempty"`
}

// ParseFile seeds a prompt list from a .txt (one prompt per line, # for
// comments) or .json file.
func ParseFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(file)
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use .txt or .json", ext)
	}
}

func ParseText(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, Item{
			Name:    fmt.Sprintf("prompt %d", len(items)+1),
			Text:    line,
			Enabled: true,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}

	return items, nil
}

func ParseJSON(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var jsonItems []jsonItem
	if err := json.Unmarshal(data, &jsonItems); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if len(jsonItems) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}

	items := make([]Item, len(jsonItems))
	for i, ji := range jsonItems {
		if strings.TrimSpace(ji.Text) == "" {
			return nil, fmt.Errorf("item %d has empty text", i+1)
		}
		enabled := true
		if ji.Enabled != nil {
			enabled = *ji.Enabled
		}
		items[i] = Item{
			Name:            ji.Name,
			Text:            ji.Text,
			Enabled:         enabled,
			SkipSurrounding: ji.SkipSurrounding,
		}
	}

	return items, nil
}
