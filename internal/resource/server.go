package resource

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nimbusinfra/acctest/internal/api"
	"github.com/nimbusinfra/acctest/internal/sshutil"
	"github.com/nimbusinfra/acctest/internal/wait"
)

const defaultStartTimeout = 240 * time.Second

// Server is a virtual machine. Creation blocks until the server
// reports a running status, so a returned server is ready to use.
type Server struct {
	Resource

	// StartTimeout bounds how long a server may feasibly take to boot.
	StartTimeout time.Duration

	autoName bool
}

// ServerOption adjusts server construction.
type ServerOption func(*Server)

// WithStartTimeout overrides how long creation waits for the running
// status.
func WithStartTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.StartTimeout = d }
}

// WithExplicitName disables automatic name generation; the spec's name
// is used verbatim.
func WithExplicitName() ServerOption {
	return func(s *Server) { s.autoName = false }
}

// DefaultServerSpec returns the baseline server spec used by
// factories: a small flavor with public networking and IPv6.
func DefaultServerSpec(zone, image, flavor string, sshKeys []string) api.Document {
	return api.Document{
		"flavor":             flavor,
		"image":              image,
		"zone":               zone,
		"volume_size_gb":     10,
		"use_public_network": true,
		"use_ipv6":           true,
		"ssh_keys":           sshKeys,
	}
}

// NewServer builds a server from the given spec without creating it.
// The spec is copied; callers can reuse theirs for further servers.
func NewServer(client *api.Client, spec api.Document, opts ...ServerOption) *Server {
	s := &Server{
		Resource:     newResource(client, MergeSpec(spec, nil)),
		StartTimeout: defaultStartTimeout,
		autoName:     true,
	}

	// Explicit interfaces take precedence over the convenience flags.
	if _, ok := s.Spec["interfaces"]; ok {
		delete(s.Spec, "use_public_network")
		delete(s.Spec, "use_private_network")
	}

	// Accept a full image document where a slug is expected.
	if image, ok := s.Spec["image"].(map[string]any); ok {
		s.Spec["image"] = image["slug"]
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.autoName {
		s.Spec["name"] = Name(client.Process(), string(client.Scope()), s.Spec.String("name"))
	}

	return s
}

// Create provisions the server and waits for it to run.
func (s *Server) Create(ctx context.Context) error {
	return s.observe(ctx, "server.create", func() error {
		info, err := s.client.Post(ctx, "/servers", s.Spec)
		if err != nil {
			return err
		}

		s.Info = info
		return s.WaitFor(ctx, "running", s.StartTimeout)
	})
}

// Update patches the given properties and waits for the server to
// leave the transitional changing status.
func (s *Server) Update(ctx context.Context, properties api.Document) error {
	return s.observe(ctx, "server.update", func() error {
		if _, err := s.client.Patch(ctx, s.Href(), properties); err != nil {
			return err
		}
		return s.WaitFor(ctx, "!changing", 0)
	})
}

// action runs a server action and waits for the expected status.
func (s *Server) action(ctx context.Context, name, expected string) error {
	if _, err := s.client.Post(ctx, s.Href()+"/"+name, nil); err != nil {
		return err
	}

	// Wait briefly for an initial changing status. Some actions, like
	// reboot, end in the same status they started from; without this
	// grace period we would observe the old status and return early.
	if err := s.WaitFor(ctx, "changing", 15*time.Second); err != nil && !wait.IsTimeout(err) {
		return err
	}

	return s.WaitFor(ctx, expected, s.StartTimeout)
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.observe(ctx, "server.stop", func() error {
		return s.action(ctx, "stop", "stopped")
	})
}

// Start boots a stopped server.
func (s *Server) Start(ctx context.Context) error {
	return s.observe(ctx, "server.start", func() error {
		return s.action(ctx, "start", "running")
	})
}

// Reboot restarts the server and waits for it to run again.
func (s *Server) Reboot(ctx context.Context) error {
	return s.observe(ctx, "server.reboot", func() error {
		return s.action(ctx, "reboot", "running")
	})
}

// ScaleRootDisk grows the server's root volume.
func (s *Server) ScaleRootDisk(ctx context.Context, newSizeGB int) error {
	return s.observe(ctx, "server.scale-root", func() error {
		volumes, _ := s.Info["volumes"].([]any)
		if len(volumes) == 0 {
			return fmt.Errorf("server %s has no volumes", s.Spec.String("name"))
		}

		root, _ := volumes[0].(map[string]any)
		uuid, _ := root["uuid"].(string)

		_, err := s.client.Patch(ctx, "/volumes/"+uuid, api.Document{"size_gb": newSizeGB})
		return err
	})
}

// interfaceAddress finds the first address of the given interface type
// and IP version, optionally limited to one network.
func (s *Server) interfaceAddress(ifaceType string, version int, networkUUID string) api.Document {
	interfaces, _ := s.Info["interfaces"].([]any)

	for _, raw := range interfaces {
		iface, _ := raw.(map[string]any)

		if api.Document(iface).String("type") != ifaceType {
			continue
		}

		if networkUUID != "" {
			network, _ := iface["network"].(map[string]any)
			if api.Document(network).String("uuid") != networkUUID {
				continue
			}
		}

		addresses, _ := iface["addresses"].([]any)
		for _, rawAddr := range addresses {
			addr, _ := rawAddr.(map[string]any)

			if v, ok := addr["version"].(float64); !ok || int(v) != version {
				continue
			}

			return api.Document(addr)
		}
	}

	return nil
}

// IP returns the server's address of the given interface type
// ("public" or "private") and IP version.
func (s *Server) IP(ifaceType string, version int) (netip.Addr, error) {
	return s.IPInNetwork(ifaceType, version, "")
}

// IPInNetwork is IP limited to the interface attached to one network.
func (s *Server) IPInNetwork(ifaceType string, version int, networkUUID string) (netip.Addr, error) {
	config := s.interfaceAddress(ifaceType, version, networkUUID)
	if config == nil {
		return netip.Addr{}, fmt.Errorf("no IP address: %s/%d", ifaceType, version)
	}

	return netip.ParseAddr(config.String("address"))
}

// Gateway returns the gateway address of the given interface type and
// IP version.
func (s *Server) Gateway(ifaceType string, version int) (netip.Addr, error) {
	config := s.interfaceAddress(ifaceType, version, "")
	if config == nil || config.String("gateway") == "" {
		return netip.Addr{}, fmt.Errorf("no gateway: %s/%d", ifaceType, version)
	}

	return netip.ParseAddr(config.String("gateway"))
}

// HasPublicInterface reports whether the server is expected to be
// reachable through a public IP, judging from its spec. Whether it is
// actually reachable is another question.
func (s *Server) HasPublicInterface() bool {
	if interfaces, ok := s.Spec["interfaces"].([]any); ok {
		for _, raw := range interfaces {
			iface, _ := raw.(map[string]any)
			if api.Document(iface).String("network") == "public" {
				return true
			}
		}
		return false
	}

	if use, ok := s.Spec["use_public_network"].(bool); ok {
		return use
	}

	return true
}

// Connect opens an SSH connection to the server's public IPv4 address,
// waiting up to the start timeout for sshd to come up. The private key
// must match one of the ssh_keys the server was created with.
func (s *Server) Connect(ctx context.Context, user string, privateKey []byte) (*sshutil.Runner, error) {
	addr, err := s.IP("public", 4)
	if err != nil {
		return nil, err
	}

	runner, err := sshutil.NewRunner(addr.String(), user, privateKey)
	if err != nil {
		return nil, err
	}

	if err := runner.Connect(ctx, s.StartTimeout); err != nil {
		return nil, err
	}

	return runner, nil
}

// InterfaceNameFor derives a unique interface name for the given
// address, e.g. for configuring a Floating IP on the host. A hash
// keeps the name under the 16-character interface name limit even for
// IPv6 addresses.
func (s *Server) InterfaceNameFor(address string) string {
	digest, _ := blake2b.New(6, nil)
	digest.Write([]byte(address))

	return fmt.Sprintf("f-%x", digest.Sum(nil))
}
