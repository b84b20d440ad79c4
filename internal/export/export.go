// Package export writes a result set to the object store and produces a
// download link for it. Export failures never lose the result itself; the
// caller answers without a link.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reconquery/reconquery/internal/storage"
	"github.com/reconquery/reconquery/internal/store"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

// StorageError wraps encode and upload failures so the caller can tell a
// degraded export apart from pipeline bugs.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("export result: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Artifact describes one uploaded result file.
type Artifact struct {
	Key      string
	URL      string
	Format   Format
	RowCount int
	Size     int64
}

type Config struct {
	Format Format
	// PublicBaseURL, when set, is joined with the object key to form the
	// download link instead of presigning. Use it when the bucket is served
	// publicly or through a CDN.
	PublicBaseURL string
	PresignExpiry time.Duration
}

type Exporter struct {
	store storage.ObjectStore
	cfg   Config
	now   func() time.Time
}

func New(objectStore storage.ObjectStore, cfg Config) *Exporter {
	if cfg.Format == "" {
		cfg.Format = FormatCSV
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	return &Exporter{store: objectStore, cfg: cfg, now: time.Now}
}

// Export encodes the full result set, uploads it under a timestamped key and
// returns the artifact with its download URL.
func (e *Exporter) Export(ctx context.Context, result store.ResultSet) (Artifact, error) {
	var (
		data []byte
		err  error
	)
	switch e.cfg.Format {
	case FormatParquet:
		data, err = EncodeParquet(result)
	default:
		data, err = EncodeCSV(result)
	}
	if err != nil {
		return Artifact{}, &StorageError{Err: err}
	}

	key, err := storage.BuildArtifactKey(string(e.cfg.Format), e.now())
	if err != nil {
		return Artifact{}, &StorageError{Err: err}
	}

	info, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: e.cfg.Format.ContentType(),
	})
	if err != nil {
		return Artifact{}, &StorageError{Err: err}
	}

	link, err := e.downloadURL(ctx, info.Key)
	if err != nil {
		return Artifact{}, &StorageError{Err: err}
	}

	return Artifact{
		Key:      info.Key,
		URL:      link,
		Format:   e.cfg.Format,
		RowCount: result.RowCount(),
		Size:     int64(len(data)),
	}, nil
}

func (e *Exporter) downloadURL(ctx context.Context, key string) (string, error) {
	if e.cfg.PublicBaseURL != "" {
		return strings.TrimRight(e.cfg.PublicBaseURL, "/") + "/" + key, nil
	}
	return e.store.PresignGet(ctx, key, e.cfg.PresignExpiry)
}

// formatValue renders a cell the same way for every output format. Database
// drivers hand back a narrow set of Go types for scanned values.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
