package questions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrNoQuestions = errors.New("no questions")

// Load reads a question list from fs. Supported formats:
//   - .json: an array of strings
//   - .js:   a script assigning an array literal (`q = ["...", "done"];`),
//     the array must be valid JSON
//   - anything else: one question per line, blank lines and # comments skipped
//
// The result always ends with the sentinel.
func Load(fs afero.Fs, path string) ([]string, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var items []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		items, err = parseJSON(raw)
	case ".js":
		items, err = parseScript(raw)
	default:
		items, err = parseLines(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}
	items = WithSentinel(items)
	if len(items) == 1 {
		return nil, ErrNoQuestions
	}
	return items, nil
}

func parseJSON(raw []byte) ([]string, error) {
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return trimAll(items), nil
}

func parseScript(raw []byte) ([]string, error) {
	start := bytes.IndexByte(raw, '[')
	end := bytes.LastIndexByte(raw, ']')
	if start < 0 || end <= start {
		return nil, errors.New("no array literal found")
	}
	return parseJSON(raw[start : end+1])
}

func parseLines(raw []byte) ([]string, error) {
	var items []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	return items, scanner.Err()
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
