package scraper

import (
	"context"
	"io"

	"snapdl/pkg/models"
	"snapdl/pkg/snapchat"
)

// SnapClient defines the remote operations a pass needs
type SnapClient interface {
	Fetch(ctx context.Context, account string, categories models.CategorySet) (*snapchat.Result, error)
	OpenMedia(ctx context.Context, url string) (io.ReadCloser, int64, error)
}
