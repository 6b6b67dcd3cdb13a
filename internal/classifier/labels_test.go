package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier/internal/errors"
)

func TestParseLabels(t *testing.T) {
	t.Parallel()

	input := "tench\n n01443537 goldfish, Carassius auratus\n\ngreat white shark, white shark\n"
	labels, err := parseLabels(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"tench", "goldfish", "", "great white shark"}, labels)

	_, err = parseLabels(strings.NewReader(""))
	require.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat\ndog\n"), 0o600))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, labels)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLabelLoad))
}
