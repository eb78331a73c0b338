package memory

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

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

func readManifestJSONL(path string) ([]MemoryRecord, error) {
	var records []MemoryRecord

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, cxerrors.IOError("open memory manifest", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record MemoryRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, cxerrors.IOError("parse memory record", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, cxerrors.IOError("scan memory manifest", err)
	}
	return records, nil
}

func appendManifestLine(path string, record MemoryRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxerrors.IOError("create directory", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return cxerrors.IOError("open memory manifest", err)
	}
	defer file.Close()

	data, err := json.Marshal(record)
	if err != nil {
		return cxerrors.IOError("encode memory record", err)
	}
	data = append(data, '\n')
	if _, err := file.Write(data); err != nil {
		return cxerrors.IOError("append memory record", err)
	}
	return nil
}

func rewriteManifest(path string, records []MemoryRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxerrors.IOError("create directory", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return cxerrors.IOError("create memory manifest", err)
	}
	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			file.Close()
			os.Remove(tmp)
			return cxerrors.IOError("encode memory record", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmp)
		return cxerrors.IOError("flush memory manifest", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return cxerrors.IOError("close memory manifest", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxerrors.IOError("rename memory manifest", err)
	}
	return nil
}
