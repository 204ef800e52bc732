package resource

import (
	"context"

	"github.com/nimbusinfra/acctest/internal/api"
)

// Creator is any resource kind that can create itself on the provider.
type Creator interface {
	Create(ctx context.Context) error
}

// Factory binds a resource constructor to a set of default spec
// parameters. Calling the returned function with overrides builds the
// resource, creates it, and returns it ready to use:
//
//	newDebianServer := resource.Factory(build, api.Document{"image": "debian-12"})
//	server, err := newDebianServer(ctx, api.Document{"flavor": "flex-8-2"})
func Factory[T Creator](build func(spec api.Document) T, defaults api.Document) func(ctx context.Context, overrides api.Document) (T, error) {
	return func(ctx context.Context, overrides api.Document) (T, error) {
		r := build(MergeSpec(defaults, overrides))

		if err := r.Create(ctx); err != nil {
			var zero T
			return zero, err
		}

		return r, nil
	}
}

// MergeSpec overlays overrides onto defaults without mutating either.
func MergeSpec(defaults, overrides api.Document) api.Document {
	merged := make(api.Document, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
