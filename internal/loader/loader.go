package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/miniscript/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Loader reads script and variable documents from local files or from
// blob storage (file, S3, GCS, Azure). YAML and JSON are both accepted
type Loader struct {
	maxSize int64
}

const fileScheme = "file"

var (
	ErrScriptLoad     = errors.New("failed to load script")
	ErrScriptNotFound = errors.New("script not found")
	ErrScriptTooLarge = errors.New("script too large")
	ErrDecode         = errors.New("failed to decode document")
	ErrVarsNotMapping = errors.New("variables must be a mapping")
)

// New creates a loader refusing documents larger than maxSize bytes
func New(maxSize int64) *Loader {
	return &Loader{maxSize: maxSize}
}

// Load reads and decodes the document at source, which is either a local
// path or a blob URL such as s3://bucket/dir/script.yaml
func (l *Loader) Load(ctx context.Context, source string) (any, error) {
	data, err := l.Read(ctx, source)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// LoadVars reads a document that must decode to a mapping of variables
func (l *Loader) LoadVars(ctx context.Context, source string) (api.Vars, error) {
	doc, err := l.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return AsVars(doc)
}

// Read returns the raw bytes at source
func (l *Loader) Read(ctx context.Context, source string) ([]byte, error) {
	if !strings.Contains(source, "://") {
		return l.readFile(source)
	}

	bucketURL, key, err := splitBlobURL(source)
	if err != nil {
		return nil, err
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}
	defer func() { _ = bucket.Close() }()

	return l.ReadBlob(ctx, bucket, key)
}

// ReadBlob returns the raw bytes stored under key in bucket
func (l *Loader) ReadBlob(
	ctx context.Context, bucket *blob.Bucket, key string,
) ([]byte, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, key)
		}
		return nil, fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}
	defer func() { _ = r.Close() }()

	if r.Size() > l.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrScriptTooLarge, key,
			r.Size())
	}
	return l.readLimited(r, key)
}

func (l *Loader) readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		}
		return nil, fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}
	defer func() { _ = f.Close() }()
	return l.readLimited(f, name)
}

func (l *Loader) readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrScriptTooLarge,
			name, l.maxSize)
	}
	return data, nil
}

// splitBlobURL separates a document URL into the bucket URL and the key.
// For file URLs the bucket is the containing directory
func splitBlobURL(source string) (string, string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}

	if u.Scheme == fileScheme {
		dir, key := path.Split(u.Path)
		if key == "" {
			return "", "", fmt.Errorf("%w: no file in %s", ErrScriptLoad,
				source)
		}
		bucket := url.URL{Scheme: fileScheme, Path: dir, RawQuery: u.RawQuery}
		return bucket.String(), key, nil
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: no key in %s", ErrScriptLoad, source)
	}
	bucket := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return bucket.String(), key, nil
}
