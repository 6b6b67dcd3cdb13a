package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tphakala/imageclassifier/internal/errors"
)

// LoadLabels reads one label per line from path.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path) //nolint:gosec // G304: label path comes from configuration
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open label file: %w", err)).
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	defer func() { _ = file.Close() }()

	labels, err := parseLabels(file)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryLabelLoad).
			Context("label_path", path).
			Build()
	}
	return labels, nil
}

// parseLabels reads labels from r. Blank lines are kept so indices stay aligned
// with model outputs; a trailing newline does not add a label.
// Lines of the form "n01440764 tench, Tinca tinca" keep only the first name.
func parseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		labels = append(labels, cleanLabel(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label file is empty")
	}
	return labels, nil
}

func cleanLabel(line string) string {
	label := strings.TrimSpace(line)
	// synset id prefix
	if len(label) > 10 && label[0] == 'n' && label[9] == ' ' && isDigits(label[1:9]) {
		label = label[10:]
	}
	if name, _, found := strings.Cut(label, ","); found {
		label = name
	}
	return strings.TrimSpace(label)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
