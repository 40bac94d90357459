package core

import (
	"context"
	"reflect"
	"testing"

	jujuerrors "github.com/juju/errors"

	"tissuecore/pkg/domain"
)

func destinationNames(items []domain.ReleaseDestination) []string {
	out := make([]string, len(items))
	for i, d := range items {
		out[i] = d.Name
	}
	return out
}

func TestAdminAddAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Destinations.Add(ctx, "admin1", "  archive ")
	mustNoErr(t, err, "add destination")
	if created.Name != "archive" || !created.Enabled {
		t.Fatalf("unexpected destination %+v", created)
	}

	enabled, err := f.svc.Destinations.List(ctx, false)
	mustNoErr(t, err, "list enabled")
	if got := destinationNames(enabled); !reflect.DeepEqual(got, []string{"archive", "Vault"}) {
		t.Fatalf("enabled destinations = %v", got)
	}

	all, err := f.svc.Destinations.List(ctx, true)
	mustNoErr(t, err, "list all")
	if got := destinationNames(all); !reflect.DeepEqual(got, []string{"archive", "Old vault", "Vault"}) {
		t.Fatalf("all destinations = %v", got)
	}
}

func TestAdminRejectsDuplicatesAndNonAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Destinations.Add(ctx, "admin1", "VAULT")
	wantProblems(t, err, `Release destination already exists: "Vault"`)

	_, err = f.svc.Reasons.Add(ctx, "user1", "Contaminated")
	wantProblems(t, err, `User "user1" does not have admin privileges.`)

	_, err = f.svc.Recipients.Add(ctx, "", "")
	wantProblems(t, err,
		"No user specified.",
		`Name "" is shorter than the minimum length 1.`,
	)
	if got := f.audit.last().Operation; got != "add_release_recipient" {
		t.Fatalf("audit operation = %q", got)
	}
}

func TestAdminSetEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.svc.Destinations.SetEnabled(ctx, "admin1", "old vault", true)
	mustNoErr(t, err, "enable destination")
	if !updated.Enabled || updated.Name != "Old vault" {
		t.Fatalf("unexpected destination %+v", updated)
	}

	_, err = f.svc.Release.Release(ctx, ReleaseRequest{User: "user1", Barcodes: []string{"STAN-101"}, Destination: "Old vault", Recipient: "recip1"})
	mustNoErr(t, err, "release to re-enabled destination")

	reason, err := f.svc.Reasons.SetEnabled(ctx, "admin1", "Damaged", false)
	mustNoErr(t, err, "disable reason")
	if reason.Enabled {
		t.Fatalf("reason still enabled")
	}

	if _, err = f.svc.Recipients.SetEnabled(ctx, "admin1", "nobody", true); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err = f.svc.OperationTypes.SetEnabled(ctx, "admin1", domain.OpRelease, false); !jujuerrors.Is(err, jujuerrors.NotSupported) {
		t.Fatalf("expected not supported, got %v", err)
	}
}

func TestAdminOperationTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.OperationTypes.Add(ctx, "admin1", "Stain")
	mustNoErr(t, err, "add operation type")
	if len(created.Flags) != 0 {
		t.Fatalf("new operation type should have no flags, got %v", created.Flags)
	}

	all, err := f.svc.OperationTypes.List(ctx, false)
	mustNoErr(t, err, "list operation types")
	if len(all) != 7 {
		t.Fatalf("expected 7 operation types, got %d", len(all))
	}
	if got := f.svc.OperationTypes.Entity(); got != "operation type" {
		t.Fatalf("entity = %q", got)
	}
}
