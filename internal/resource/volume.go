package resource

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusinfra/acctest/internal/api"
)

// Volume is a block storage volume, attachable to one server.
type Volume struct {
	Resource
}

// VolumeSpec builds the spec for a volume with a unique name.
func VolumeSpec(process string, sizeGB int, zone, volumeType string) api.Document {
	if volumeType == "" {
		volumeType = "ssd"
	}

	return api.Document{
		"name":    process + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		"size_gb": sizeGB,
		"type":    volumeType,
		"zone":    zone,
	}
}

// NewVolume builds a volume from the given spec without creating it.
func NewVolume(client *api.Client, spec api.Document) *Volume {
	return &Volume{Resource: newResource(client, spec)}
}

// Create provisions the volume.
func (v *Volume) Create(ctx context.Context) error {
	return v.observe(ctx, "volume.create", func() error {
		info, err := v.client.Post(ctx, "/volumes", v.Spec)
		if err != nil {
			return err
		}

		v.Info = info
		return nil
	})
}

// Update patches the given properties and refreshes the volume.
func (v *Volume) Update(ctx context.Context, properties api.Document) error {
	if _, err := v.client.Patch(ctx, v.Href(), properties); err != nil {
		return err
	}
	return v.Refresh(ctx)
}

// Attach connects the volume to the given server.
func (v *Volume) Attach(ctx context.Context, server *Server) error {
	return v.observe(ctx, "volume.attach", func() error {
		return v.Update(ctx, api.Document{"server_uuids": []string{server.UUID()}})
	})
}

// Detach disconnects the volume from any server.
func (v *Volume) Detach(ctx context.Context) error {
	return v.observe(ctx, "volume.detach", func() error {
		return v.Update(ctx, api.Document{"server_uuids": []string{}})
	})
}

// Scale grows the volume to the new size.
func (v *Volume) Scale(ctx context.Context, newSizeGB int) error {
	return v.observe(ctx, "volume.scale", func() error {
		return v.Update(ctx, api.Document{"size_gb": newSizeGB})
	})
}
