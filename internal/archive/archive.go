// Package archive keeps a best-effort audit trail of answered questions as
// parquet segments in object storage. Archive failures are logged and
// dropped; the answer path never depends on audit storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/storage"
)

// Record is one answered (or failed) question.
type Record struct {
	AskedAtUnixMs int64  `parquet:"asked_at_unix_ms"`
	Question      string `parquet:"question"`
	Statement     string `parquet:"statement"`
	RowCount      int64  `parquet:"row_count"`
	DurationMs    int64  `parquet:"duration_ms"`
	Status        string `parquet:"status"`
	ErrorText     string `parquet:"error_text"`
}

const (
	StatusAnswered = "answered"
	StatusFailed   = "failed"

	defaultBatchSize = 64
)

type Archiver struct {
	store     storage.ObjectStore
	logger    *slog.Logger
	batchSize int

	mu      sync.Mutex
	pending []Record
}

func New(store storage.ObjectStore, logger *slog.Logger, batchSize int) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Archiver{store: store, logger: logger, batchSize: batchSize}, nil
}

// Append buffers a record and flushes a full batch. Failures are logged, not
// returned: the caller's request already succeeded or failed on its own.
func (a *Archiver) Append(ctx context.Context, record Record) {
	a.mu.Lock()
	a.pending = append(a.pending, record)
	var batch []Record
	if len(a.pending) >= a.batchSize {
		batch = a.pending
		a.pending = nil
	}
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := a.write(ctx, batch); err != nil && a.logger != nil {
		a.logger.Error("audit archive write failed",
			slog.Int("records", len(batch)),
			slog.Any("error", err),
		)
	}
}

// Flush writes any buffered records immediately.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return a.write(ctx, batch)
}

// Close flushes the remaining buffer. Call it on shutdown.
func (a *Archiver) Close(ctx context.Context) error {
	return a.Flush(ctx)
}

func (a *Archiver) write(ctx context.Context, batch []Record) error {
	data, err := encodeRecords(batch)
	if err != nil {
		return err
	}
	key := segmentKey(time.Now().UTC())
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("put audit segment %q: %w", key, err)
	}
	return nil
}

func encodeRecords(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("records are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Record](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func segmentKey(now time.Time) string {
	return fmt.Sprintf("audit/%04d/%02d/%02d/askdb-%d.parquet",
		now.Year(), now.Month(), now.Day(), now.UnixNano())
}
