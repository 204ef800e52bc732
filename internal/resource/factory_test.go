package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/nimbusinfra/acctest/internal/api"
)

type fakeCreator struct {
	spec    api.Document
	created bool
	fail    error
}

func (f *fakeCreator) Create(ctx context.Context) error {
	if f.fail != nil {
		return f.fail
	}
	f.created = true
	return nil
}

func TestFactory_MergesDefaultsAndCreates(t *testing.T) {
	t.Parallel()

	var built *fakeCreator
	factory := Factory(func(spec api.Document) *fakeCreator {
		built = &fakeCreator{spec: spec}
		return built
	}, api.Document{"image": "debian-12", "flavor": "flex-4-1"})

	created, err := factory(context.Background(), api.Document{"flavor": "flex-8-2"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if created != built || !created.created {
		t.Error("Expected the built resource back, created")
	}
	if created.spec["image"] != "debian-12" {
		t.Errorf("Expected the default image, got: %v", created.spec["image"])
	}
	if created.spec["flavor"] != "flex-8-2" {
		t.Errorf("Expected the override to win, got: %v", created.spec["flavor"])
	}
}

func TestFactory_CreationFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	factory := Factory(func(spec api.Document) *fakeCreator {
		return &fakeCreator{fail: boom}
	}, nil)

	created, err := factory(context.Background(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the creation error, got: %v", err)
	}
	if created != nil {
		t.Error("Expected no resource on failure")
	}
}

func TestMergeSpec_DoesNotMutate(t *testing.T) {
	t.Parallel()

	defaults := api.Document{"image": "debian-12"}
	overrides := api.Document{"image": "ubuntu-24.04", "zone": "ost2"}

	merged := MergeSpec(defaults, overrides)

	if merged["image"] != "ubuntu-24.04" || merged["zone"] != "ost2" {
		t.Errorf("Unexpected merge result: %v", merged)
	}
	if defaults["image"] != "debian-12" {
		t.Error("Expected the defaults to stay untouched")
	}
	if _, ok := defaults["zone"]; ok {
		t.Error("Expected no override keys to leak into the defaults")
	}
}
