package resource

import (
	"context"

	"github.com/nimbusinfra/acctest/internal/api"
)

// ObjectsUser is an object-storage user account with its own S3
// credentials. Deleting one cascades through its buckets and topics;
// that lives in the client's delete-handler dispatch, not here.
type ObjectsUser struct {
	Resource
}

// NewObjectsUser builds an objects user with the given display name
// without creating it.
func NewObjectsUser(client *api.Client, name string) *ObjectsUser {
	return &ObjectsUser{Resource: newResource(client, api.Document{
		"display_name": client.Process() + "-" + name,
	})}
}

// FromHref wraps an already-existing objects user, e.g. during a
// cleanup sweep of a previous run.
func FromHref(ctx context.Context, client *api.Client, href string) (*ObjectsUser, error) {
	user := &ObjectsUser{Resource: newResource(client, api.Document{})}

	info, err := client.Get(ctx, href)
	if err != nil {
		return nil, err
	}

	user.Info = info
	return user, nil
}

// Create provisions the user account and waits until its freshly
// issued keys actually work against the storage endpoint. Tests use
// the keys right after Create returns.
func (u *ObjectsUser) Create(ctx context.Context) error {
	return u.observe(ctx, "objects-user.create", func() error {
		info, err := u.client.Post(ctx, "/objects-users", u.Spec)
		if err != nil {
			return err
		}

		u.Info = info

		_, err = u.client.ObjectsStorageFor(ctx, u.Info)
		return err
	})
}

// Keys returns the user's access key pairs.
func (u *ObjectsUser) Keys() []api.Document {
	raw, _ := u.Info["keys"].([]any)

	keys := make([]api.Document, 0, len(raw))
	for _, k := range raw {
		if m, ok := k.(map[string]any); ok {
			keys = append(keys, api.Document(m))
		}
	}

	return keys
}
