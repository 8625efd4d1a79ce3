package webhook

import (
	"context"
	"fmt"
	"time"

	"datavend_backend/internal/adapters/storage"
)

// Archiver keeps verified delivery bodies for later reconciliation.
type Archiver interface {
	Archive(ctx context.Context, n Notification, body []byte) (string, error)
}

// BucketArchiver writes deliveries to an object storage bucket.
type BucketArchiver struct {
	store  storage.ObjectStore
	bucket string
	now    func() time.Time
}

// NewBucketArchiver creates an archiver writing into bucket.
func NewBucketArchiver(store storage.ObjectStore, bucket string) *BucketArchiver {
	return &BucketArchiver{store: store, bucket: bucket, now: time.Now}
}

// Archive implements Archiver. Keys are grouped by event and UTC day.
func (a *BucketArchiver) Archive(ctx context.Context, n Notification, body []byte) (string, error) {
	key := archiveKey(n, a.now().UTC())
	if err := a.store.PutObject(ctx, a.bucket, key, "application/json", body); err != nil {
		return "", err
	}
	return key, nil
}

func archiveKey(n Notification, at time.Time) string {
	id := n.Data.ID.String()
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s-%d.json", n.Event, at.Format("2006/01/02"), id, at.UnixNano())
}
