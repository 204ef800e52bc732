package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/wait"
)

const defaultImportTimeout = 120 * time.Second

// CustomImage imports a disk image. Creation is long-running: the
// import call returns a job, and a separate progress resource is
// polled until the import finishes. Only then is the final image
// fetched.
type CustomImage struct {
	Resource

	// Progress is the import job's state, distinct from the image
	// itself.
	Progress api.Document

	// ImportTimeout bounds the wait for the import to complete.
	ImportTimeout time.Duration
}

// NewCustomImage builds a custom image from the given import spec
// (url, name, slug, checksums, zones) without importing it.
func NewCustomImage(client *api.Client, spec api.Document) *CustomImage {
	return &CustomImage{
		Resource:      newResource(client, spec),
		ImportTimeout: defaultImportTimeout,
	}
}

// Create starts the import, waits for it to complete, and fetches the
// resulting image.
func (i *CustomImage) Create(ctx context.Context) error {
	return i.observe(ctx, "custom-image.import", func() error {
		progress, err := i.client.Post(ctx, "/custom-images/import", i.Spec)
		if err != nil {
			return err
		}
		i.Progress = progress

		if err := i.waitForCompletion(ctx); err != nil {
			return err
		}

		image, _ := i.Progress["custom_image"].(map[string]any)

		info, err := i.client.Get(ctx, api.Document(image).Href())
		if err != nil {
			return err
		}

		i.Info = info
		return nil
	})
}

// waitForCompletion polls the progress resource until the import
// leaves in_progress. Any status other than success is an error.
func (i *CustomImage) waitForCompletion(ctx context.Context) error {
	interval := i.PollInterval
	if interval == 0 {
		interval = time.Second
	}

	return wait.Poll(ctx, interval, i.ImportTimeout, "custom image import to complete",
		func(ctx context.Context) (bool, error) {
			switch status := i.Progress.Status(); status {
			case "success":
				return true, nil
			case "in_progress":
			default:
				return false, fmt.Errorf("custom image import has unexpected status: %q", status)
			}

			progress, err := i.client.Get(ctx, i.Progress.Href())
			if err != nil {
				return false, err
			}

			i.Progress = progress
			return i.Progress.Status() == "success", nil
		})
}
