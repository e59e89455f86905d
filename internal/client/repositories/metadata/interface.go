// Package metadata stores small client-side key/value state: the contact
// sync watermark and the identity of the paired node.
package metadata

import "context"

// Keys used by the client services.
const (
	// KeySyncWatermark holds the lastModified stamp the next contact sync
	// resumes from, as decimal text.
	KeySyncWatermark = "contacts.sync_watermark"
	// KeyNodeKey holds the public key of the node this store belongs to.
	KeyNodeKey = "device.public_key"
	// KeyNodeName holds the advertised name seen at the last handshake.
	KeyNodeName = "device.name"
)

// Repository describes the key/value store plus typed accessors for the
// well-known keys.
type Repository interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value, replacing any previous one.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Watermark returns the contact sync watermark, zero when no sync has
	// completed yet.
	Watermark(ctx context.Context) (uint32, error)

	// SetWatermark advances the contact sync watermark.
	SetWatermark(ctx context.Context, v uint32) error
}
