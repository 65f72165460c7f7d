package upload

import (
	"context"
	"fmt"

	"github.com/eternisai/chat-relay/internal/config"
)

// New builds the uploader selected by cfg.UploadProvider.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	switch cfg.UploadProvider {
	case config.UploadProviderCloudinary:
		return NewCloudinary(CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.UploadFolder,
		}), nil
	case config.UploadProviderGCS:
		return NewGCS(ctx, cfg.GCSBucket, cfg.UploadFolder, cfg.GCSCredJSON)
	default:
		return nil, fmt.Errorf("unknown upload provider %q", cfg.UploadProvider)
	}
}
