package docstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"medrag/internal/domain"
)

const maxLineSize = 16 * 1024 * 1024

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// readDir reads supported files in name order. Subdirectories are not visited.
func readDir(dir string, logger arbor.ILogger) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir %s: %w", dir, err)
	}
	var docs []domain.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, ".txt"):
			doc, err := readText(path, name)
			if err != nil {
				logger.Warn().Err(err).Str("file", path).Msg("Skipping unreadable document")
				continue
			}
			docs = append(docs, doc)
		case strings.HasSuffix(name, ".jsonl"):
			recs, err := readJSONL(path, name, logger)
			if err != nil {
				logger.Warn().Err(err).Str("file", path).Int("records", len(recs)).Msg("Stopped reading document records")
			}
			docs = append(docs, recs...)
		default:
			logger.Debug().Str("file", path).Msg("Ignoring unsupported file")
		}
	}
	return docs, nil
}

func readText(path, name string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if !utf8.Valid(data) {
		return domain.Document{}, errInvalidUTF8
	}
	return domain.Document{ID: name, Text: normalizeNewlines(string(data)), Source: path}, nil
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// normalizeNewlines maps CRLF and lone CR line endings to LF.
func normalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return newlineReplacer.Replace(s)
}

// readJSONL returns every record parsed before an I/O error, along with that error.
// Malformed lines are skipped individually.
func readJSONL(path, name string, logger arbor.ILogger) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []domain.Document
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, ok := parseRecord(line, name, path)
		if !ok {
			logger.Warn().Str("file", path).Int("line", lineNo).Msg("Skipping malformed record")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, sc.Err()
}

// parseRecord reads {"id": ..., "text": ...} falling back to "content" for the
// text and to the file name for the id.
func parseRecord(line []byte, name, path string) (domain.Document, bool) {
	if !utf8.Valid(line) || !gjson.ValidBytes(line) {
		return domain.Document{}, false
	}
	rec := gjson.ParseBytes(line)
	if !rec.IsObject() {
		return domain.Document{}, false
	}
	text := rec.Get("text").String()
	if text == "" {
		text = rec.Get("content").String()
	}
	id := rec.Get("id").String()
	if id == "" {
		id = name
	}
	return domain.Document{ID: id, Text: text, Source: path}, true
}
