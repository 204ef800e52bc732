package resource

import (
	"context"

	"github.com/nimbusinfra/acctest/internal/api"
)

// ServerGroup is an anti-affinity group of servers.
type ServerGroup struct {
	Resource
}

// ServerGroupSpec builds the spec for an anti-affinity group.
func ServerGroupSpec(process, name, zone string) api.Document {
	return api.Document{
		"name": process + "-" + name,
		"type": "anti-affinity",
		"zone": zone,
	}
}

// NewServerGroup builds a server group from the given spec without
// creating it.
func NewServerGroup(client *api.Client, spec api.Document) *ServerGroup {
	return &ServerGroup{Resource: newResource(client, spec)}
}

// Create provisions the server group.
func (g *ServerGroup) Create(ctx context.Context) error {
	return g.observe(ctx, "server-group.create", func() error {
		info, err := g.client.Post(ctx, "/server-groups", g.Spec)
		if err != nil {
			return err
		}

		g.Info = info
		return nil
	})
}

// Rename changes the group's name and refreshes it.
func (g *ServerGroup) Rename(ctx context.Context, name string) error {
	return g.observe(ctx, "server-group.rename", func() error {
		if _, err := g.client.Patch(ctx, g.Href(), api.Document{"name": name}); err != nil {
			return err
		}
		return g.Refresh(ctx)
	})
}
