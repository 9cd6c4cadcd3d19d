// Package objectstore keeps synthesized audio in a NATS JetStream object store bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lexiqai/assist-gateway/internal/resilience"
)

// ErrNotFound is returned by Download for keys that were never uploaded or have expired
var ErrNotFound = errors.New("object not found")

// NatsObjectStore stores blobs in one JetStream object store bucket
type NatsObjectStore struct {
	conn   *nats.Conn
	bucket string
	store  jetstream.ObjectStore
}

// Connect dials NATS, retrying with backoff while the server comes up
func Connect(ctx context.Context, url string, reconnect *resilience.ReconnectConfig) (*nats.Conn, error) {
	var conn *nats.Conn
	err := resilience.Reconnect(ctx, "nats", func() error {
		c, err := nats.Connect(url,
			nats.Name("assist-gateway"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, reconnect)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// New creates the bucket, or binds to it if it already exists. A zero ttl
// keeps objects until they are overwritten.
func New(ctx context.Context, conn *nats.Conn, bucketName string, ttl time.Duration) (*NatsObjectStore, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Storage for the %s bucket.", bucketName),
		TTL:         ttl,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}
		store, err = js.ObjectStore(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{conn: conn, bucket: bucketName, store: store}, nil
}

// Download retrieves an object from the bucket
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := n.store.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}
	return data, nil
}

// Upload saves an object to the bucket, replacing any previous version
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	if _, err := n.store.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}
	return nil
}

// Ping reports whether the underlying connection is usable
func (n *NatsObjectStore) Ping(ctx context.Context) (bool, error) {
	if !n.conn.IsConnected() {
		return false, fmt.Errorf("nats connection status %s", n.conn.Status())
	}
	return true, nil
}
