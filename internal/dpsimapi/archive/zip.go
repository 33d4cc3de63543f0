// Package archive extracts uploaded profile-data archives into memory.
//
// Uploaded archives are untrusted. ReadZip treats every entry as hostile: names are
// normalised and must stay inside the archive root, declared sizes must match the
// decompressed content, and configurable limits bound the amount of memory an archive
// can claim. Extraction is all-or-nothing.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
)

var zipMagic = []byte("PK\x03\x04")

type Limits struct {
	MaxEntries   int
	MaxEntrySize int64
	MaxTotalSize int64
}

var DefaultLimits = Limits{
	MaxEntries:   1024,
	MaxEntrySize: 64 << 20,
	MaxTotalSize: 256 << 20,
}

// IsZip reports whether an upload should be treated as a zip archive rather than a single profile file.
func IsZip(name string, contentType string, data []byte) bool {
	switch strings.ToLower(contentType) {
	case "application/zip", "application/x-zip-compressed":
		return true
	}
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

// ReadZip returns the content of every file in the archive, keyed by its normalised relative path.
// Directory entries are skipped. Any problem yields a *dpsimerrors.ErrArchive and no data.
func ReadZip(data []byte, limits Limits) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, archiveError("", fmt.Sprintf("could not read archive: %v", err))
	}
	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, archiveError("", fmt.Sprintf("archive has %d entries, at most %d are allowed", len(reader.File), limits.MaxEntries))
	}

	files := make(map[string][]byte, len(reader.File))
	var total int64
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := NormalisePath(f.Name)
		if err != nil {
			return nil, err
		}
		if _, exists := files[name]; exists {
			return nil, archiveError(f.Name, "duplicate entry")
		}

		declared := f.UncompressedSize64
		if limits.MaxEntrySize > 0 && declared > uint64(limits.MaxEntrySize) {
			return nil, archiveError(f.Name, fmt.Sprintf("declared size %d exceeds limit %d", declared, limits.MaxEntrySize))
		}
		total += int64(declared)
		if limits.MaxTotalSize > 0 && total > limits.MaxTotalSize {
			return nil, archiveError(f.Name, fmt.Sprintf("archive content exceeds limit %d", limits.MaxTotalSize))
		}

		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		files[name] = content
	}
	return files, nil
}

// readEntry decompresses one entry, reading at most one byte more than declared
// so that an entry lying about its size can't exhaust memory.
func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, archiveError(f.Name, fmt.Sprintf("could not open entry: %v", err))
	}
	defer rc.Close()

	declared := f.UncompressedSize64
	content, err := io.ReadAll(io.LimitReader(rc, int64(declared)+1))
	if err != nil {
		return nil, archiveError(f.Name, fmt.Sprintf("could not decompress entry: %v", err))
	}
	if uint64(len(content)) != declared {
		return nil, archiveError(f.Name, fmt.Sprintf("declared size %d does not match decompressed size", declared))
	}
	return content, nil
}

// NormalisePath cleans an archive entry name and rejects names that are absolute or escape the archive root.
func NormalisePath(name string) (string, error) {
	if name == "" {
		return "", archiveError(name, "empty entry name")
	}
	if strings.ContainsRune(name, '\\') {
		return "", archiveError(name, "backslash in entry name")
	}
	if strings.ContainsRune(name, 0) {
		return "", archiveError(name, "NUL byte in entry name")
	}
	if path.IsAbs(name) || hasVolumeName(name) {
		return "", archiveError(name, "absolute entry name")
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", archiveError(name, "entry escapes the archive root")
	}
	return cleaned, nil
}

// hasVolumeName catches Windows style names such as "C:/evil" that path.IsAbs doesn't.
func hasVolumeName(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		(('a' <= name[0] && name[0] <= 'z') || ('A' <= name[0] && name[0] <= 'Z'))
}

func archiveError(entry string, reason string) error {
	return errors.WithStack(&dpsimerrors.ErrArchive{Entry: entry, Reason: reason})
}
