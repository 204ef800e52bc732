package config

import (
	"strings"
	"testing"
)

func TestNewIdentity_RunnerStable(t *testing.T) {
	t.Parallel()

	a := NewIdentity("some-token")
	b := NewIdentity("some-token")

	if a.Runner != b.Runner {
		t.Errorf("Expected a stable runner id for the same token, got %q and %q", a.Runner, b.Runner)
	}
	if !strings.HasPrefix(a.Runner, "at-") {
		t.Errorf("Expected at- prefix, got: %q", a.Runner)
	}
	if len(a.Runner) != len("at-")+16 {
		t.Errorf("Expected 16 hex characters after the prefix, got: %q", a.Runner)
	}
}

func TestNewIdentity_RunnerNotTheToken(t *testing.T) {
	t.Parallel()

	token := "secret-token"
	id := NewIdentity(token)

	if strings.Contains(id.Runner, token) {
		t.Error("The runner id must never contain the token")
	}
}

func TestNewIdentity_DistinctTokensDistinctRunners(t *testing.T) {
	t.Parallel()

	if NewIdentity("token-a").Runner == NewIdentity("token-b").Runner {
		t.Error("Expected distinct runner ids for distinct tokens")
	}
}

func TestNewIdentity_ProcessUnique(t *testing.T) {
	t.Parallel()

	a := NewIdentity("some-token")
	b := NewIdentity("some-token")

	if a.Process == b.Process {
		t.Errorf("Expected a fresh process id per invocation, got %q twice", a.Process)
	}
	if !strings.HasPrefix(a.Process, "at-") {
		t.Errorf("Expected at- prefix, got: %q", a.Process)
	}
}
