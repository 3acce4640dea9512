package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// namesEntry matches one `index: 'label'` pair of the dict literal the
// Ultralytics exporter stores under the "names" metadata key.
var namesEntry = regexp.MustCompile(`(\d+)\s*:\s*(?:'([^']*)'|"([^"]*)")`)

func loadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	if path == "" {
		return metadata, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return metadata, nil
		}
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// parseNames turns "{0: 'Lung_Opacity', 1: 'Normal'}" into an index-ordered
// label table. Indices must be contiguous from zero.
func parseNames(raw string) ([]string, error) {
	matches := namesEntry.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no class names in %q", raw)
	}
	byIndex := make(map[int]string, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad class index %q: %w", m[1], err)
		}
		label := m[2]
		if label == "" {
			label = m[3]
		}
		byIndex[idx] = label
	}
	labels := make([]string, len(byIndex))
	for idx, label := range byIndex {
		if idx >= len(labels) {
			return nil, fmt.Errorf("class indices are not contiguous: %d of %d", idx, len(labels))
		}
		labels[idx] = label
	}
	return labels, nil
}

// labelsFromMap is used for the bridge protocol, which sends names as a JSON
// object keyed by the stringified index.
func labelsFromMap(names map[string]string) ([]string, error) {
	labels := make([]string, len(names))
	for key, label := range names {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("bad class index %q: %w", key, err)
		}
		if idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("class indices are not contiguous: %d of %d", idx, len(labels))
		}
		labels[idx] = label
	}
	return labels, nil
}
