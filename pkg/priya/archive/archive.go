// Package archive packages the fenced code blocks of a reply into a zip
// laid out like a small project. Extraction is a pure function of the
// text and equal text yields byte-identical archives.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNothingToPackage is returned when the text holds no non-empty block.
var ErrNothingToPackage = errors.New("archive: nothing to package")

// Filename and Caption describe the archive when it is sent.
const (
	Filename = "code.zip"
	Caption  = "📁 Code ZIP ready bestie 💻"
)

// Directory categories. The root category has no folder.
const (
	CategorySource = "src"
	CategoryWeb    = "web"
	CategoryConfig = "config"
	CategoryDocs   = "docs"
	CategoryRoot   = ""
)

type fileType struct {
	ext      string
	category string
}

var labels = map[string]fileType{
	"python":     {"py", CategorySource},
	"py":         {"py", CategorySource},
	"html":       {"html", CategoryWeb},
	"css":        {"css", CategoryWeb},
	"javascript": {"js", CategoryWeb},
	"js":         {"js", CategoryWeb},
	"json":       {"json", CategoryConfig},
	"text":       {"txt", CategoryDocs},
	"txt":        {"txt", CategoryDocs},
	"md":         {"md", CategoryDocs},
	"bash":       {"sh", CategoryRoot},
	"env":        {"env", CategoryRoot},
}

var defaultType = fileType{"txt", CategoryDocs}

// fenced matches ```label\n body ```. The label is optional; the newline
// after it is not.
var fenced = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")

// modTime is stamped on every entry so output does not depend on the clock.
var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// File is one extracted block.
type File struct {
	// Path is the archive path, e.g. "src/file_1.py".
	Path    string
	Label   string
	Content string
}

// Extract returns the files found in text in order of appearance. The n in
// file_<n> counts every fenced block, including skipped empty ones.
func Extract(text string) []File {
	var files []File
	for i, m := range fenced.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[2])
		if content == "" {
			continue
		}
		label := strings.ToLower(m[1])
		ft, ok := labels[label]
		if !ok {
			ft = defaultType
		}
		name := fmt.Sprintf("file_%d.%s", i+1, ft.ext)
		if ft.category != CategoryRoot {
			name = path.Join(ft.category, name)
		}
		files = append(files, File{Path: name, Label: label, Content: content})
	}
	return files
}

// Build zips the files extracted from text.
func Build(text string) ([]byte, error) {
	files := Extract(text)
	if len(files) == 0 {
		return nil, ErrNothingToPackage
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Path,
			Method:   zip.Deflate,
			Modified: modTime,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: adding %s: %w", f.Path, err)
		}
		if _, err := w.Write([]byte(f.Content)); err != nil {
			return nil, fmt.Errorf("archive: writing %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: closing: %w", err)
	}
	return buf.Bytes(), nil
}
