package resource

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/nimbusinfra/acctest/internal/api"
)

// LoadBalancer is a load balancer with its owned sub-collections:
// listeners, pools, pool members and health monitors. The top-level
// representation only references them, so Refresh re-fetches each one
// individually.
type LoadBalancer struct {
	Resource

	Listeners      []api.Document
	Pools          []api.Document
	PoolMembers    []api.Document
	HealthMonitors []api.Document
}

// LoadBalancerSpec builds the spec for a load balancer.
func LoadBalancerSpec(process, name, zone, flavor string, vipAddresses []api.Document) api.Document {
	if flavor == "" {
		flavor = "lb-standard"
	}

	spec := api.Document{
		"name":   Name(process, name),
		"zone":   zone,
		"flavor": flavor,
	}

	if len(vipAddresses) > 0 {
		spec["vip_addresses"] = vipAddresses
	}

	return spec
}

// NewLoadBalancer builds a load balancer from the given spec without
// creating it.
func NewLoadBalancer(client *api.Client, spec api.Document) *LoadBalancer {
	return &LoadBalancer{Resource: newResource(client, spec)}
}

// Create provisions the load balancer.
func (lb *LoadBalancer) Create(ctx context.Context) error {
	return lb.observe(ctx, "load-balancer.create", func() error {
		info, err := lb.client.Post(ctx, "/load-balancers", lb.Spec)
		if err != nil {
			return err
		}

		lb.Info = info
		return nil
	})
}

// Refresh re-fetches the load balancer and every owned sub-resource.
func (lb *LoadBalancer) Refresh(ctx context.Context) error {
	if err := lb.Resource.Refresh(ctx); err != nil {
		return err
	}

	for _, collection := range []*[]api.Document{
		&lb.Listeners, &lb.Pools, &lb.PoolMembers, &lb.HealthMonitors,
	} {
		for i, doc := range *collection {
			fresh, err := lb.client.Get(ctx, doc.Href())
			if err != nil {
				return err
			}
			(*collection)[i] = fresh
		}
	}

	return nil
}

// AddPool creates a pool on the load balancer and returns it.
func (lb *LoadBalancer) AddPool(ctx context.Context, name, algorithm, protocol string) (api.Document, error) {
	if protocol == "" {
		protocol = "tcp"
	}

	var pool api.Document
	err := lb.observe(ctx, "load-balancer.add-pool", func() error {
		var err error
		pool, err = lb.client.Post(ctx, "/load-balancers/pools", api.Document{
			"name":          lb.client.Process() + "-pool-" + name,
			"load_balancer": lb.UUID(),
			"algorithm":     algorithm,
			"protocol":      protocol,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	lb.Pools = append(lb.Pools, pool)
	return pool, nil
}

// AddPoolMember adds a backend server to a pool, using the backend's
// private address in the given network.
func (lb *LoadBalancer) AddPoolMember(ctx context.Context, pool api.Document, backend *Server, backendNetwork *Network) (api.Document, error) {
	address := backend.interfaceAddress("private", 4, backendNetwork.UUID())
	if address == nil {
		return nil, fmt.Errorf("backend %s has no private address in network %s",
			backend.Spec.String("name"), backendNetwork.UUID())
	}

	subnet, _ := address["subnet"].(map[string]any)

	var member api.Document
	err := lb.observe(ctx, "load-balancer.add-pool-member", func() error {
		var err error
		member, err = lb.client.Post(ctx,
			fmt.Sprintf("/load-balancers/pools/%s/members", pool.String("uuid")),
			api.Document{
				"name":          lb.client.Process() + "-pool-member-" + backend.Spec.String("name"),
				"protocol_port": 8000,
				"address":       address.String("address"),
				"subnet":        api.Document(subnet).String("uuid"),
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	lb.PoolMembers = append(lb.PoolMembers, member)
	return member, nil
}

// RemovePoolMember deletes a pool member.
func (lb *LoadBalancer) RemovePoolMember(ctx context.Context, pool, member api.Document) error {
	return lb.observe(ctx, "load-balancer.remove-pool-member", func() error {
		err := lb.client.Delete(ctx, fmt.Sprintf(
			"/load-balancers/pools/%s/members/%s", pool.String("uuid"), member.String("uuid")))
		if err != nil {
			return err
		}

		kept := lb.PoolMembers[:0]
		for _, m := range lb.PoolMembers {
			if m.String("uuid") != member.String("uuid") {
				kept = append(kept, m)
			}
		}
		lb.PoolMembers = kept

		return nil
	})
}

// TogglePoolMember enables or disables a pool member.
func (lb *LoadBalancer) TogglePoolMember(ctx context.Context, pool, member api.Document, enabled bool) error {
	return lb.observe(ctx, "load-balancer.toggle-pool-member", func() error {
		_, err := lb.client.Patch(ctx, fmt.Sprintf(
			"/load-balancers/pools/%s/members/%s", pool.String("uuid"), member.String("uuid")),
			api.Document{"enabled": enabled})
		return err
	})
}

// AddListener creates a listener forwarding the given port to a pool.
func (lb *LoadBalancer) AddListener(ctx context.Context, pool api.Document, protocolPort int, allowedCIDRs []string, name string) (api.Document, error) {
	if name == "" {
		name = fmt.Sprintf("port-%d", protocolPort)
	}
	if allowedCIDRs == nil {
		allowedCIDRs = []string{}
	}

	var listener api.Document
	err := lb.observe(ctx, "load-balancer.add-listener", func() error {
		var err error
		listener, err = lb.client.Post(ctx, "/load-balancers/listeners", api.Document{
			"name":          lb.client.Process() + "-listener-" + name,
			"pool":          pool.String("uuid"),
			"protocol":      "tcp",
			"protocol_port": protocolPort,
			"allowed_cidrs": allowedCIDRs,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	lb.Listeners = append(lb.Listeners, listener)
	return listener, nil
}

// UpdateListener patches properties of a listener.
func (lb *LoadBalancer) UpdateListener(ctx context.Context, listener api.Document, properties api.Document) error {
	return lb.observe(ctx, "load-balancer.update-listener", func() error {
		_, err := lb.client.Patch(ctx, "/load-balancers/listeners/"+listener.String("uuid"), properties)
		return err
	})
}

// AddHealthMonitor creates a health monitor on a pool.
func (lb *LoadBalancer) AddHealthMonitor(ctx context.Context, pool api.Document, monitorType string, httpConfig api.Document) (api.Document, error) {
	var monitor api.Document
	err := lb.observe(ctx, "load-balancer.add-health-monitor", func() error {
		body := api.Document{
			"pool": pool.String("uuid"),
			"type": monitorType,
		}
		if httpConfig != nil {
			body["http"] = httpConfig
		}

		var err error
		monitor, err = lb.client.Post(ctx, "/load-balancers/health-monitors", body)
		return err
	})
	if err != nil {
		return nil, err
	}

	lb.HealthMonitors = append(lb.HealthMonitors, monitor)
	return monitor, nil
}

// VIP returns the load balancer's virtual IP of the given version.
func (lb *LoadBalancer) VIP(version int) (netip.Addr, error) {
	addresses, _ := lb.Info["vip_addresses"].([]any)

	for _, raw := range addresses {
		addr, _ := raw.(map[string]any)

		if v, ok := addr["version"].(float64); ok && int(v) == version {
			return netip.ParseAddr(api.Document(addr).String("address"))
		}
	}

	return netip.Addr{}, fmt.Errorf("no IPv%d VIP address", version)
}
