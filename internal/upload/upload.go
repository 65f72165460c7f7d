// Package upload proxies client image uploads to an object store and hands
// back a public URL the chat endpoint can reference.
package upload

import (
	"context"
	"errors"
	"io"
)

// Result is what clients receive after a successful upload.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// File is one uploaded image as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Uploader interface {
	// Upload stores the file and returns its public location.
	Upload(ctx context.Context, f File) (*Result, error)
	// Provider names the backing service for logs and metrics.
	Provider() string
}

var errEmptyResult = errors.New("upload provider returned no url")
