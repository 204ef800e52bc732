package resource

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/nimbusinfra/acctest/internal/api"
)

// FloatingIP is an address (or prefix) that can be pointed at a server
// or a load balancer.
type FloatingIP struct {
	Resource
}

// FloatingIPSpec builds the spec for a Floating IP request. Optional
// parameters are left out when zero.
func FloatingIPSpec(ipVersion int, region string, prefixLength int, server, reversePtr string) api.Document {
	spec := api.Document{
		"ip_version": ipVersion,
		"region":     region,
	}

	if prefixLength != 0 {
		spec["prefix_length"] = prefixLength
	}
	if server != "" {
		spec["server"] = server
	}
	if reversePtr != "" {
		spec["reverse_ptr"] = reversePtr
	}

	return spec
}

// NewFloatingIP builds a Floating IP from the given spec without
// creating it.
func NewFloatingIP(client *api.Client, spec api.Document) *FloatingIP {
	return &FloatingIP{Resource: newResource(client, spec)}
}

// Create requests the Floating IP.
func (f *FloatingIP) Create(ctx context.Context) error {
	return f.observe(ctx, "floating-ip.create", func() error {
		info, err := f.client.Post(ctx, "/floating-ips", f.Spec)
		if err != nil {
			return err
		}

		f.Info = info
		return nil
	})
}

// Assign points the Floating IP at exactly one of a server or a load
// balancer. The provider has no way to unassign, only to reassign.
func (f *FloatingIP) Assign(ctx context.Context, server *Server, lb *LoadBalancer) error {
	return f.observe(ctx, "floating-ip.assign", func() error {
		if server != nil && lb != nil {
			return errors.New("cannot assign a Floating IP to a server and a load balancer at the same time")
		}

		var body api.Document
		switch {
		case server != nil:
			body = api.Document{"server": server.UUID()}
		case lb != nil:
			body = api.Document{"load_balancer": lb.UUID()}
		default:
			return errors.New("a Floating IP cannot be unassigned, only reassigned")
		}

		if _, err := f.client.Patch(ctx, f.Href(), body); err != nil {
			return err
		}

		return f.Refresh(ctx)
	})
}

// Update patches the given properties of the Floating IP.
func (f *FloatingIP) Update(ctx context.Context, properties api.Document) error {
	return f.observe(ctx, "floating-ip.update", func() error {
		_, err := f.client.Patch(ctx, f.Href(), properties)
		return err
	})
}

// Network returns the Floating IP's network in CIDR form.
func (f *FloatingIP) Network() (netip.Prefix, error) {
	network := f.Info.String("network")
	if network == "" {
		return netip.Prefix{}, fmt.Errorf("floating IP has no network yet")
	}

	return netip.ParsePrefix(network)
}

// IP returns the first address of the Floating IP's network.
func (f *FloatingIP) IP() (netip.Addr, error) {
	prefix, err := f.Network()
	if err != nil {
		return netip.Addr{}, err
	}

	return prefix.Addr(), nil
}

func (f *FloatingIP) String() string {
	if addr, err := f.IP(); err == nil {
		return addr.String()
	}
	return "<uncreated floating ip>"
}
