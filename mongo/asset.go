package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// AssetStore implements discovery.AssetStore on a GridFS bucket. Asset ids
// are GridFS ObjectID hex strings; the content type rides in file metadata.
type AssetStore struct {
	bucket *mongo.GridFSBucket
}

// NewAssetStore creates an asset store using the given GridFS bucket.
func NewAssetStore(bucket *mongo.GridFSBucket) *AssetStore {
	return &AssetStore{
		bucket: bucket,
	}
}

// Put stores data and returns the generated asset id.
func (a *AssetStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	id, err := a.bucket.UploadFromStream(ctx, "asset", bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return id.Hex(), nil
}

// Get retrieves asset bytes and content type by id.
func (a *AssetStore) Get(ctx context.Context, id string) ([]byte, string, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, "", discovery.ErrNotFound
	}

	stream, err := a.bucket.OpenDownloadStream(ctx, oid)
	if err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, "", discovery.ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}

	contentType := ""
	if file := stream.GetFile(); file != nil && len(file.Metadata) > 0 {
		if v, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = v
		}
	}
	return data, contentType, nil
}

// Delete removes an asset by id.
func (a *AssetStore) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return discovery.ErrNotFound
	}

	if err := a.bucket.Delete(ctx, oid); err != nil {
		if errors.Is(err, mongo.ErrFileNotFound) {
			return discovery.ErrNotFound
		}
		return fmt.Errorf("%w: %w", discovery.ErrBackend, err)
	}
	return nil
}

// Ensure AssetStore implements discovery.AssetStore.
var _ discovery.AssetStore = (*AssetStore)(nil)
