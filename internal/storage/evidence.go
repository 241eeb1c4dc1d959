package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

// BucketName is the GridFS bucket holding photo and video evidence.
const BucketName = "mineflow_media"

// EvidenceStore accepts a binary blob and returns a durable reference.
// A failed upload returns an error and no reference; there is no
// partial-success state.
type EvidenceStore interface {
	Put(ctx context.Context, key string, src io.Reader) (string, error)
}

// EvidenceKey builds the canonical blob key for a piece of stage
// evidence.
func EvidenceKey(processID string, stage models.Stage, kind string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s", processID, stage, at.Unix(), kind)
}

// GridFSStore stores evidence blobs in a GridFS bucket, keeping media in
// the same MongoDB deployment as the records that reference it.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

// NewGridFSStore opens the evidence bucket on the given database.
func NewGridFSStore(database *mongo.Database) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(BucketName))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSStore{bucket: bucket}, nil
}

// Put uploads a blob and returns its reference. The reference is only
// returned once the upload has fully committed.
func (s *GridFSStore) Put(ctx context.Context, key string, src io.Reader) (string, error) {
	// The bucket API has no context parameter; the caller's deadline is
	// carried via the write deadline instead.
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetWriteDeadline(deadline); err != nil {
			return "", fmt.Errorf("upload evidence %s: %w", key, err)
		}
	}
	if _, err := s.bucket.UploadFromStream(key, src); err != nil {
		return "", fmt.Errorf("upload evidence %s: %w", key, err)
	}
	return BucketName + "/" + key, nil
}
