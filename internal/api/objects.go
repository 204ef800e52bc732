package api

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nimbusinfra/acctest/internal/objects"
	"github.com/nimbusinfra/acctest/internal/wait"
)

// ObjectsStorage is the slice of the object-storage and notification
// APIs the delete cascade needs. It is deliberately small so tests can
// stand in a fake.
type ObjectsStorage interface {
	// Ready reports whether the session's credentials are usable yet.
	Ready(ctx context.Context) (bool, error)

	// DeleteAllBuckets empties and deletes every bucket the
	// credentials own.
	DeleteAllBuckets(ctx context.Context) error

	// DeleteTopics deletes every notification topic whose ARN matches
	// valid, and fails on any topic that does not.
	DeleteTopics(ctx context.Context, valid *regexp.Regexp) error
}

// ObjectsSessionFactory opens a storage session with per-user
// credentials, not the client's bearer token.
type ObjectsSessionFactory func(ctx context.Context, endpoint, accessKey, secretKey string) (ObjectsStorage, error)

func newObjectsSession(ctx context.Context, endpoint, accessKey, secretKey string) (ObjectsStorage, error) {
	return objects.NewSession(ctx, endpoint, accessKey, secretKey)
}

// ObjectsStorageFor opens a storage session with the user's own
// credentials and waits for them to be usable. Freshly issued keys can
// take a little while to propagate to the storage endpoint, so callers
// get a session that is known to work.
func (c *Client) ObjectsStorageFor(ctx context.Context, user Document) (ObjectsStorage, error) {
	access, secret, err := objectsCredentials(user)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials of %s: %w", user.Href(), err)
	}

	zone := user.Tags()["zone"]
	if zone == "" {
		zone = c.cfg.Zone
	}

	endpoint := "https://" + c.ObjectsEndpointFor(zone)

	storage, err := c.cfg.Objects(ctx, endpoint, access, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage session for %s: %w", user.Href(), err)
	}

	err = wait.Poll(ctx, c.cfg.PollInterval, c.cfg.CredentialTimeout, "objects credentials to work",
		func(ctx context.Context) (bool, error) {
			return storage.Ready(ctx)
		})
	if err != nil {
		return nil, err
	}

	return storage, nil
}
