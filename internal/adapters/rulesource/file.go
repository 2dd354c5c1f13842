package rulesource

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// FileSource reads rules from a JSON file. Paths ending in .xz are decompressed.
type FileSource struct {
	path string
}

// NewFileSource creates a file-backed rule source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

// Path returns the watched file.
func (s *FileSource) Path() string { return s.path }

// Load reads and normalizes the whole file.
func (s *FileSource) Load(ctx context.Context) ([]entities.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := ReadRecordsFile(s.path)
	if err != nil {
		return nil, err
	}
	return normalizeAndLog(s.Name(), records), nil
}

// ReadRecordsFile decodes the raw records of a JSON or JSON.xz rule file.
func ReadRecordsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		r = xr
	}
	return DecodeRecords(r)
}
