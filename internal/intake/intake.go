// Package intake reads candidate files: a JSON object or an array of objects
// with a nested business_info payload and a top-level url.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	// ErrFileNotFound is returned when the input file does not exist
	ErrFileNotFound = errors.New("file_not_found")
	// ErrInvalidJSON is returned when the input file is not a JSON object or array
	ErrInvalidJSON = errors.New("invalid_json")
	// ErrMalformedRecord is returned by Record.Decode for records of the wrong shape
	ErrMalformedRecord = errors.New("malformed_record")
)

// BusinessInfo is the nested contact payload of a candidate record
type BusinessInfo struct {
	Email        string `json:"email"`
	BusinessName string `json:"business name"`
	FirstName    string `json:"first name"`
	Surname      string `json:"surname"`
}

// Record is one element of the input file, decoded lazily
type Record struct {
	Index int
	Raw   json.RawMessage
}

// Candidate is a decoded record
type Candidate struct {
	URL      string
	Info     BusinessInfo
	Original map[string]any
}

// Decode extracts the candidate fields. A record that is not an object, or
// whose business_info is not an object, yields ErrMalformedRecord. A missing
// business_info yields an empty Info.
func (r Record) Decode() (*Candidate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: record %d is not an object", ErrMalformedRecord, r.Index)
	}

	c := &Candidate{}
	if err := json.Unmarshal(r.Raw, &c.Original); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if raw, ok := fields["url"]; ok {
		// non-string urls are dropped rather than rejected
		_ = json.Unmarshal(raw, &c.URL)
	}

	raw, ok := fields["business_info"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return c, nil
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: record %d business_info is not an object", ErrMalformedRecord, r.Index)
	}
	if err := json.Unmarshal(raw, &c.Info); err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedRecord, r.Index, err)
	}

	return c, nil
}

// Parse splits a JSON document into records
func Parse(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	var raws []json.RawMessage
	switch data[0] {
	case '{':
		raws = []json.RawMessage{data}
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	default:
		return nil, ErrInvalidJSON
	}

	records := make([]Record, len(raws))
	for i, raw := range raws {
		records[i] = Record{Index: i, Raw: raw}
	}
	return records, nil
}

// ObjectGetter is the subset of the S3 client used to fetch input files
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader reads input files from the local filesystem or, for s3://bucket/key
// paths, from S3
type Loader struct {
	S3 ObjectGetter
}

// Load reads a local file
func Load(path string) ([]Record, error) {
	return (&Loader{}).Load(context.Background(), path)
}

// Load reads and parses the file at path
func (l *Loader) Load(ctx context.Context, path string) ([]Record, error) {
	var (
		data []byte
		err  error
	)

	if bucket, key, ok := splitS3Path(path); ok {
		data, err = l.fetchS3(ctx, bucket, key)
	} else {
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	}
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func (l *Loader) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if l.S3 == nil {
		return nil, fmt.Errorf("s3 client not configured for s3://%s/%s", bucket, key)
	}

	resp, err := l.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrFileNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func splitS3Path(path string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(path, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
