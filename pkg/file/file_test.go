package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_JSONRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "identity.json")

	require.NoError(t, fs.WriteJsonFile(path, map[string]string{"user_id": "u-1"}))

	var got map[string]string
	require.NoError(t, fs.ReadJsonFile(path, &got))
	assert.Equal(t, "u-1", got["user_id"])

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileService_ReadYamlFile(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "route.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: loop\npoints:\n  - lat: 1.5\n"), 0o600))

	var got struct {
		Name   string `yaml:"name"`
		Points []struct {
			Lat float64 `yaml:"lat"`
		} `yaml:"points"`
	}
	require.NoError(t, fs.ReadYamlFile(path, &got))
	assert.Equal(t, "loop", got.Name)
	require.Len(t, got.Points, 1)
	assert.Equal(t, 1.5, got.Points[0].Lat)
}

func TestFileService_IsFileExists(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "x")

	exists, err := fs.IsFileExists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	exists, err = fs.IsFileExists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	raw, err := fs.ReadFileRaw(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)
}
