package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCS writes images into a Cloud Storage bucket whose objects are publicly
// readable.
type GCS struct {
	client *storage.Client
	bucket string
	folder string
}

func NewGCS(ctx context.Context, bucket, folder, credJSON string) (*GCS, error) {
	var opts []option.ClientOption
	if credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, folder: folder}, nil
}

func (g *GCS) Provider() string { return "gcs" }

func (g *GCS) Upload(ctx context.Context, f File) (*Result, error) {
	name := objectName(g.folder, f.Name)

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = f.ContentType
	w.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(w, f.Body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %s: %w", name, err)
	}

	return &Result{
		URL:      fmt.Sprintf("%s/%s/%s", gcsPublicHost, g.bucket, name),
		PublicID: name,
	}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// objectName keeps the original extension and replaces the rest of the
// client-supplied name with a random id.
func objectName(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}
