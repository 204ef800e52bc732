package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/nimbusinfra/acctest/internal/wait"
)

// DeleteHandler deletes the resource at the given URL, including
// whatever extra work that resource type needs before or after the
// actual DELETE.
type DeleteHandler func(ctx context.Context, c *Client, url string) error

// DeleteHandlerRegistry maps URL path patterns to specialized deletion
// procedures. It is constructed once and owned by the client; patterns
// are matched against the full path and must not overlap.
type DeleteHandlerRegistry struct {
	entries []handlerEntry
}

type handlerEntry struct {
	pattern *regexp.Regexp
	handler DeleteHandler
}

// NewDeleteHandlerRegistry returns an empty registry; URLs without a
// matching pattern fall back to a plain DELETE.
func NewDeleteHandlerRegistry() *DeleteHandlerRegistry {
	return &DeleteHandlerRegistry{}
}

// Register adds a handler for paths fully matching the given pattern.
// Invalid patterns panic; registration happens at construction time.
func (r *DeleteHandlerRegistry) Register(pattern string, handler DeleteHandler) {
	r.entries = append(r.entries, handlerEntry{
		pattern: regexp.MustCompile(`\A(?:` + pattern + `)\z`),
		handler: handler,
	})
}

// HandlerFor picks the first handler whose pattern fully matches the
// URL's path, or the default plain-DELETE handler.
func (r *DeleteHandlerRegistry) HandlerFor(rawURL string) DeleteHandler {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}

	for _, entry := range r.entries {
		if entry.pattern.MatchString(path) {
			return entry.handler
		}
	}

	// DeleteRaw, not Delete: the default handler runs downstream of
	// the dispatch and must not recurse into it.
	return func(ctx context.Context, c *Client, url string) error {
		return c.DeleteRaw(ctx, url)
	}
}

// DefaultHandlers returns the registry with the two handlers the
// provider needs for correct teardown.
func DefaultHandlers() *DeleteHandlerRegistry {
	r := NewDeleteHandlerRegistry()
	r.Register(`/v1/volume-snapshots/.+`, deleteVolumeSnapshot)
	r.Register(`/v1/objects-users/.+`, deleteObjectsUser)
	return r
}

// deleteVolumeSnapshot deletes a snapshot and waits for it to actually
// disappear. Snapshot deletion is asynchronous on the provider side,
// and servers cannot be deleted while a snapshot referencing them is
// still materializing its deletion.
func deleteVolumeSnapshot(ctx context.Context, c *Client, url string) error {
	if err := c.DeleteRaw(ctx, url); err != nil {
		return err
	}

	lastStatus := ""
	err := wait.Poll(ctx, c.cfg.PollInterval, c.cfg.SnapshotDeleteTimeout, "snapshot to be deleted",
		func(ctx context.Context) (bool, error) {
			doc, err := c.Get(ctx, url)
			if err != nil {
				if IsStatus(err, http.StatusNotFound) {
					// The snapshot is gone, stop waiting.
					return true, nil
				}
				return false, err
			}

			lastStatus = doc.Status()
			return false, nil
		})

	if wait.IsTimeout(err) {
		return fmt.Errorf(
			"snapshot failed to delete within %s, status is still %q: %w",
			c.cfg.SnapshotDeleteTimeout, lastStatus, err,
		)
	}

	return err
}

// topicARN is the naming convention for notification topics created by
// acceptance tests. Anything else in the account is left alone.
var topicARN = regexp.MustCompile(`\Aarn:aws:sns:[a-z]+[0-9]*::at-.+\z`)

// deleteObjectsUser deletes an objects user, cascading through the
// sub-resources the main API does not track: the user's storage
// buckets (and their objects) and notification topics, both reached
// with the user's own credentials instead of the bearer token.
func deleteObjectsUser(ctx context.Context, c *Client, url string) error {
	user, err := c.Get(ctx, url)
	if err != nil {
		return err
	}

	storage, err := c.ObjectsStorageFor(ctx, user)
	if err != nil {
		return err
	}

	if err := storage.DeleteAllBuckets(ctx); err != nil {
		return fmt.Errorf("failed to delete buckets of %s: %w", url, err)
	}

	if err := storage.DeleteTopics(ctx, topicARN); err != nil {
		return fmt.Errorf("failed to delete topics of %s: %w", url, err)
	}

	return c.DeleteRaw(ctx, url)
}

// objectsCredentials extracts the first access/secret key pair from an
// objects-user representation.
func objectsCredentials(user Document) (access, secret string, err error) {
	keys, _ := user["keys"].([]any)
	if len(keys) == 0 {
		return "", "", errors.New("user has no keys")
	}

	first, _ := keys[0].(map[string]any)
	access, _ = first["access_key"].(string)
	secret, _ = first["secret_key"].(string)

	if access == "" || secret == "" {
		return "", "", errors.New("user key is missing access or secret")
	}

	return access, secret, nil
}
