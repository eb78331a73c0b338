package index

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// readMetaLogOrdered loads the meta log as the ordered slice it was written
// in; chunk_id is redundant with slice position but is trusted from disk
// rather than recomputed, so a log written by a different build count still
// round-trips its own ids.
func readMetaLogOrdered(path string) ([]StoredChunk, error) {
	var chunks []StoredChunk

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return chunks, nil
		}
		return nil, cxerrors.IOError("open meta log", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sc StoredChunk
		if err := json.Unmarshal(line, &sc); err != nil {
			return nil, cxerrors.IOError("parse meta log entry", err)
		}
		chunks = append(chunks, sc)
	}
	if err := scanner.Err(); err != nil {
		return nil, cxerrors.IOError("scan meta log", err)
	}
	return chunks, nil
}

// readMetaLogByChecksum loads the meta log keyed by content checksum, the
// form the builder uses to look up a prior build's embedding for an
// unchanged chunk regardless of where that chunk now falls in the ordering.
func readMetaLogByChecksum(path string) (map[string]StoredChunk, error) {
	ordered, err := readMetaLogOrdered(path)
	if err != nil {
		return nil, err
	}
	byChecksum := make(map[string]StoredChunk, len(ordered))
	for _, sc := range ordered {
		byChecksum[sc.Checksum] = sc
	}
	return byChecksum, nil
}

// writeMetaLog overwrites the meta log with exactly the given chunks,
// atomically, one JSON object per line.
func writeMetaLog(path string, chunks []StoredChunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cxerrors.IOError("create directory", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return cxerrors.IOError("create meta log", err)
	}

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			file.Close()
			os.Remove(tmp)
			return cxerrors.IOError("encode meta log entry", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmp)
		return cxerrors.IOError("flush meta log", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return cxerrors.IOError("close meta log", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cxerrors.IOError("rename meta log", err)
	}
	return nil
}
