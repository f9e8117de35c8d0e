package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsStore implements core.ArtifactStore on a NATS JetStream object-store
// bucket, for deployments where audio artifacts should outlive the web
// process.
type NatsStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNatsStore creates or binds to the object-store bucket.
func NewNatsStore(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsStore, error) {
	// Create-first; bind when the bucket already exists.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Combined audio artifacts for the %s bucket.", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Save uploads the artifact under filename and returns its public path.
func (n *NatsStore) Save(_ context.Context, filename string, data []byte) (string, error) {
	_, err := n.store.Put(&nats.ObjectMeta{Name: filename}, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to put artifact '%s' to bucket '%s': %w", filename, n.bucket, err)
	}

	return PublicAudioPrefix + filename, nil
}

// Load downloads the artifact stored under filename.
func (n *NatsStore) Load(_ context.Context, filename string) ([]byte, error) {
	obj, err := n.store.Get(filename)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
		}

		return nil, fmt.Errorf("failed to get artifact '%s' from bucket '%s': %w", filename, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read artifact '%s': %w", filename, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close artifact '%s': %w", filename, closeErr)
	}

	return data, nil
}
