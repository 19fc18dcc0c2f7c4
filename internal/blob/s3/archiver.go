package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
)

// HistoryArchiveStore is the narrow read interface the archiver needs from
// the history mirror.
type HistoryArchiveStore interface {
	// ListBefore returns all records closed strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.HistoryRecord, error)
	// Count returns the total number of mirrored records.
	Count(ctx context.Context) (int64, error)
}

// multipartWriter is implemented by blob writers that support multipart
// uploads. Large archive batches go through it when available.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// multipartThreshold is the payload size above which the archiver switches
// from a single PutObject to a multipart upload.
const multipartThreshold = 8 << 20

// Archiver moves old closed-position records to object storage as JSONL.
// Deletion of the archived rows from the mirror is intentionally NOT
// performed here; that is a separate, explicit step to run after the
// archive has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	history HistoryArchiveStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, history HistoryArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		history: history,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveHistory uploads every record closed before the cutoff to
// archive/history/YYYY-MM.jsonl and returns the number of records archived.
func (a *Archiver) ArchiveHistory(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history marshal: %w", err)
	}

	path := archivePath(before)
	if mw, ok := a.writer.(multipartWriter); ok && len(buf) >= multipartThreshold {
		err = mw.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history upload: %w", err)
	}

	total, err := a.history.Count(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "mirror count failed", slog.Any("error", err))
		total = -1
	}

	a.logger.InfoContext(ctx, "history archived",
		slog.String("path", path),
		slog.Int("count", len(records)),
		slog.Int64("mirror_total", total),
		slog.String("before", before.Format(time.RFC3339)),
	)
	return int64(len(records)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/history/2025-01.jsonl.
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/history/%s.jsonl", before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL(records []domain.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
