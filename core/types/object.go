package types

import (
	"fmt"
	"io"
	"strings"
)

// Location identifies a stored object
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// String returns the s3-style URI of the location
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + strings.TrimPrefix(l.Key, "/")
}

// Object is an open stored object. Callers must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// ParseLocation parses an s3://bucket/key URI
func ParseLocation(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Location{}, fmt.Errorf("not an s3 uri: %s", uri)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("s3 uri needs a bucket and a key: %s", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsLocation reports whether s looks like an s3 uri
func IsLocation(s string) bool {
	return strings.HasPrefix(s, "s3://")
}
