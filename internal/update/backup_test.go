package update

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
}

func TestBackupTreeCopiesFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"iot_pubsub_gui.py":  "print('hi')\n",
		"requirements.txt":   "paho-mqtt\n",
		"assets/icon.svg":    "<svg/>",
		".git/HEAD":          "ref: refs/heads/release/1.0.0\n",
		".git/objects/ab/cd": "blob",
		".gitignore":         "venv/\n",
	})

	dest := t.TempDir()
	backupPath, err := backupTree(src, dest)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(backupPath, "iot_pubsub_gui.py"))
	assert.FileExists(t, filepath.Join(backupPath, "requirements.txt"))
	assert.FileExists(t, filepath.Join(backupPath, "assets", "icon.svg"))

	// Version-control metadata stays behind; dotfiles that are not .git
	// come along.
	assert.NoDirExists(t, filepath.Join(backupPath, ".git"))
	assert.FileExists(t, filepath.Join(backupPath, ".gitignore"))

	content, err := os.ReadFile(filepath.Join(backupPath, "requirements.txt"))
	require.NoError(t, err)
	assert.Equal(t, "paho-mqtt\n", string(content))
}

func TestBackupTreeDefaultsToSibling(t *testing.T) {
	parent := t.TempDir()
	src := filepath.Join(parent, "iot-pubsub-gui")
	writeTree(t, src, map[string]string{"main.py": "pass\n"})

	backupPath, err := backupTree(src, "")
	require.NoError(t, err)

	assert.Equal(t, parent, filepath.Dir(backupPath))
	assert.Contains(t, filepath.Base(backupPath), "backup_")
}

func TestBackupTreeSourceMissing(t *testing.T) {
	_, err := backupTree(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.Error(t, err)
}
