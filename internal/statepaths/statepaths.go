package statepaths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStateDir  = "~/.sticker-porter"
	defaultDownloads = "."
	StateDBFilename  = "porter.db"
)

var ErrOutsideRoot = errors.New("download directory is outside the download root")

// ExpandHomePath replaces a leading ~ with the user's home directory.
func ExpandHomePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

func FileStateDir() string {
	dir := strings.TrimSpace(viper.GetString("file_state_dir"))
	if dir == "" {
		dir = defaultStateDir
	}
	return filepath.Clean(ExpandHomePath(dir))
}

// StateDBPath is state.db_path, or porter.db under the state dir.
func StateDBPath() string {
	if p := strings.TrimSpace(viper.GetString("state.db_path")); p != "" {
		return filepath.Clean(ExpandHomePath(p))
	}
	return filepath.Join(FileStateDir(), StateDBFilename)
}

// DownloadRoot is the directory relative download targets resolve against.
func DownloadRoot() string {
	root := strings.TrimSpace(viper.GetString("download.root_dir"))
	if root == "" {
		root = defaultDownloads
	}
	return filepath.Clean(ExpandHomePath(root))
}

// ResolveDownloadDir joins a user supplied target onto root unless it is
// already absolute or home relative.
func ResolveDownloadDir(root, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	expanded := ExpandHomePath(target)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	if strings.TrimSpace(root) == "" {
		root = defaultDownloads
	}
	return filepath.Join(root, expanded)
}

// ConfineDownloadDir resolves target like ResolveDownloadDir and rejects the
// result when it does not stay inside root. Symlinks are not followed.
func ConfineDownloadDir(root, target string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = defaultDownloads
	}
	dir := ResolveDownloadDir(root, target)
	if dir == "" {
		return "", nil
	}
	absRoot, err := filepath.Abs(ExpandHomePath(root))
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	return dir, nil
}
