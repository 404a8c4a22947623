package config

import (
	"os"
	"path/filepath"
	"strings"
)

// resolveUnderHome sandboxes rawPath against home: it must be relative,
// contain no ".." component, not begin with "~", resolve inside home once
// joined, and never traverse a symlinked path component on the way there.
func resolveUnderHome(home, rawPath string) (string, error) {
	if rawPath == "" {
		return "", &LoadError{Field: "path", Msg: "must be set"}
	}
	if strings.HasPrefix(rawPath, "~") {
		return "", &LoadError{Field: "path", Msg: "must not begin with ~"}
	}
	if filepath.IsAbs(rawPath) {
		return "", &LoadError{Field: "path", Msg: "must be relative"}
	}
	for _, part := range strings.Split(filepath.ToSlash(rawPath), "/") {
		if part == ".." {
			return "", &LoadError{Field: "path", Msg: "must not contain .."}
		}
	}

	joined := filepath.Join(home, rawPath)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", &LoadError{Field: "path", Msg: "could not resolve: " + err.Error()}
	}

	absHome, err := filepath.Abs(home)
	if err != nil {
		return "", &LoadError{Field: "home", Msg: "could not resolve: " + err.Error()}
	}

	rel, err := filepath.Rel(absHome, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &LoadError{Field: "path", Msg: "must resolve under home"}
	}

	if err := checkNoSymlinkTraversal(absHome, rel); err != nil {
		return "", err
	}

	return resolved, nil
}

// checkNoSymlinkTraversal walks each path component of rel under home,
// rejecting the path if any existing component is a symlink. Non-existent
// components are permitted (the caller may be about to create them).
func checkNoSymlinkTraversal(home, rel string) error {
	if rel == "." {
		return nil
	}
	probe := home
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		probe = filepath.Join(probe, part)
		info, err := os.Lstat(probe)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return &LoadError{Field: "path", Msg: "could not stat: " + err.Error()}
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return &LoadError{Field: "path", Msg: "must not traverse symlinks under home"}
		}
	}
	return nil
}
