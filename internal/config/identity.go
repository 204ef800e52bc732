package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Identity is the tuple attached to every created resource. Runner is
// stable across runs of the same credential; Process changes with every
// invocation of the harness.
type Identity struct {
	Runner  string
	Process string
}

// NewIdentity derives the identity tuple from the API token.
//
// The runner id is a short stable hash of the token, never the token
// itself, so it is safe to attach to resources and to use in lock file
// names. Runners sharing an account must use distinct tokens, otherwise
// one runner's session sweep may collect the other's resources.
func NewIdentity(token string) Identity {
	digest := blake2b.Sum256([]byte(token))

	return Identity{
		Runner:  fmt.Sprintf("at-%x", digest[:8]),
		Process: newProcessID(),
	}
}

// newProcessID returns a random per-invocation identifier. It doubles
// as the name prefix for resources created by this process.
func newProcessID() string {
	return "at-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
