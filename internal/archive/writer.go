package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gocloud.dev/blob"

	"github.com/kode4food/miniscript/pkg/api"
)

type (
	// Writer stores finished run records as JSON objects in a bucket
	Writer struct {
		bucket BucketWriter
		prefix string
	}

	// BucketWriter is the part of *blob.Bucket the Writer needs
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}

	// Record is the archived form of one run: its outcome plus every event
	// it emitted, in order
	Record struct {
		StartedAt  time.Time    `json:"started_at"`
		FinishedAt time.Time    `json:"finished_at"`
		Value      any          `json:"value,omitempty"`
		RunID      api.RunID    `json:"run_id"`
		Status     api.Status   `json:"status"`
		Error      string       `json:"error,omitempty"`
		Events     []*api.Event `json:"events"`
	}
)

const jsonContentType = "application/json"

var (
	ErrBucketRequired = errors.New("bucket is required")
	ErrRecordRequired = errors.New("archive record is required")
)

// NewWriter creates a writer placing objects under prefix in bucket
func NewWriter(bucket BucketWriter, prefix string) (*Writer, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &Writer{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Write stores rec under <prefix>/<run id>.json
func (w *Writer) Write(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrRecordRequired
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return w.bucket.WriteAll(ctx, Key(w.prefix, rec.RunID), data,
		&blob.WriterOptions{ContentType: jsonContentType},
	)
}

// Key returns the object key of a run record
func Key(prefix string, id api.RunID) string {
	if prefix == "" {
		return string(id) + ".json"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + string(id) + ".json"
}
