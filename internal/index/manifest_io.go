package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cxerrors.IOError("read manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cxerrors.IOError("parse manifest", err)
	}
	return &m, nil
}

func saveManifest(path string, m Manifest) error {
	return writeJSONAtomic(path, m)
}

func loadAnalytics(path string) (*Analytics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Analytics{}, nil
		}
		return nil, cxerrors.IOError("read analytics", err)
	}
	var a Analytics
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, cxerrors.IOError("parse analytics", err)
	}
	return &a, nil
}

func saveAnalytics(path string, a Analytics) error {
	return writeJSONAtomic(path, a)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxerrors.IOError("create directory", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cxerrors.IOError("encode json", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cxerrors.IOError("write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxerrors.IOError("rename temp file", err)
	}
	return nil
}
