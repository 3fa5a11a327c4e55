package update

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// backupTree copies the working tree, excluding version-control metadata,
// to a timestamped directory. destDir defaults to the tree's parent. The
// backup is advisory only: it is never deleted automatically and never used
// for automatic rollback.
func backupTree(treePath, destDir string) (string, error) {
	src, err := filepath.Abs(treePath)
	if err != nil {
		return "", err
	}
	if destDir == "" {
		destDir = filepath.Dir(src)
	}

	backupPath := filepath.Join(destDir, "backup_"+time.Now().Format("20060102_150405"))
	if _, err := os.Stat(backupPath); err == nil {
		return "", fmt.Errorf("backup destination %s already exists", backupPath)
	}

	if err := copyTree(src, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

// copyTree recursively copies src to dst, skipping the .git directory.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
