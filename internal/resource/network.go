package resource

import (
	"context"
	"net/netip"

	"github.com/nimbusinfra/acctest/internal/api"
)

// Network is a private network; subnets hang off it.
type Network struct {
	Resource
}

// NetworkSpec builds the spec for a private network.
func NetworkSpec(process, name, zone string, autoCreateIPv4Subnet bool) api.Document {
	return api.Document{
		"name":                    process + "-" + name,
		"zone":                    zone,
		"auto_create_ipv4_subnet": autoCreateIPv4Subnet,
	}
}

// NewNetwork builds a network from the given spec without creating it.
func NewNetwork(client *api.Client, spec api.Document) *Network {
	return &Network{Resource: newResource(client, spec)}
}

// Create provisions the network.
func (n *Network) Create(ctx context.Context) error {
	return n.observe(ctx, "network.create", func() error {
		info, err := n.client.Post(ctx, "/networks", n.Spec)
		if err != nil {
			return err
		}

		n.Info = info
		return nil
	})
}

// AddSubnet creates a subnet in this network and returns it.
func (n *Network) AddSubnet(ctx context.Context, cidr, gatewayAddress string, dnsServers []string) (*Subnet, error) {
	subnet := NewSubnet(n.client, api.Document{
		"network":         n.UUID(),
		"cidr":            cidr,
		"gateway_address": gatewayAddress,
		"dns_servers":     dnsServers,
	})

	if err := subnet.Create(ctx); err != nil {
		return nil, err
	}

	return subnet, nil
}

// ChangeMTU sets the network's MTU.
func (n *Network) ChangeMTU(ctx context.Context, mtu int) error {
	return n.observe(ctx, "network.change-mtu", func() error {
		_, err := n.client.Patch(ctx, n.Href(), api.Document{"mtu": mtu})
		return err
	})
}

// Subnet is an address range within a network.
type Subnet struct {
	Resource
}

// NewSubnet builds a subnet from the given spec without creating it.
func NewSubnet(client *api.Client, spec api.Document) *Subnet {
	return &Subnet{Resource: newResource(client, spec)}
}

// Create provisions the subnet.
func (s *Subnet) Create(ctx context.Context) error {
	return s.observe(ctx, "subnet.create", func() error {
		info, err := s.client.Post(ctx, "/subnets", s.Spec)
		if err != nil {
			return err
		}

		s.Info = info
		return nil
	})
}

// ChangeDNSServers sets the subnet's DNS servers.
func (s *Subnet) ChangeDNSServers(ctx context.Context, dnsServers []string) error {
	return s.observe(ctx, "subnet.change-dns-servers", func() error {
		_, err := s.client.Patch(ctx, s.Href(), api.Document{"dns_servers": dnsServers})
		return err
	})
}

// Contains reports whether the given address falls into the subnet.
func (s *Subnet) Contains(address string) bool {
	cidr, err := s.StringAttr("cidr")
	if err != nil {
		return false
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}

	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}

	return prefix.Contains(addr)
}

// Delete is a no-op: subnets are removed automatically with their
// network.
func (s *Subnet) Delete(ctx context.Context) error {
	return nil
}
