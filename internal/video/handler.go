package video

import (
	"context"
	"io"

	"github.com/vidtube/vidtube/internal/database"
)

// ObjectStorage is the slice of the blob store the video handlers use.
// Upload returns the durable public URL of the stored object.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	UploadFile(ctx context.Context, key string, filePath string, contentType string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

type Handler struct {
	db             database.DBTX
	storage        ObjectStorage
	maxUploadBytes int64
}

func NewHandler(db database.DBTX, storage ObjectStorage, maxUploadBytes int64) *Handler {
	return &Handler{db: db, storage: storage, maxUploadBytes: maxUploadBytes}
}

type ownerDetails struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}
