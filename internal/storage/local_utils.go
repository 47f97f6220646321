package storage

import "path/filepath"

func localStorageFullpath(baseDir, key string) string {
	return filepath.Join(baseDir, filepath.FromSlash(key))
}

func localStorageKey(baseDir, path string) (string, error) {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
