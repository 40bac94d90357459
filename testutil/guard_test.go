package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		path string
		want bool
	}{
		{TransportImport, "github.com/gin-gonic/gin", true},
		{TransportImport, "github.com/redis/go-redis/v9", true},
		{TransportImport, "github.com/google/uuid", false},
		{InternalImport, "tissuecore/internal/core", true},
		{InternalImport, "tissuecore/pkg/domain", false},
		{Any(TransportImport, InternalImport), "tissuecore/internal/blob", true},
		{Any(TransportImport, InternalImport), "context", false},
	}
	for _, tc := range cases {
		if got := tc.pred(tc.path); got != tc.want {
			t.Fatalf("predicate(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.go", "package tmp\nimport (\n\t\"fmt\"\n\t\"github.com/gin-gonic/gin\"\n)\nvar _ = fmt.Sprint\nvar _ gin.H\n")
	write("a_test.go", "package tmp\nimport \"github.com/redis/go-redis/v9\"\nvar _ redis.Cmdable\n")
	write("notes.txt", "import \"github.com/go-resty/resty/v2\"")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	viols, err := directImportViolations(dir, TransportImport)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if want := []string{"github.com/gin-gonic/gin (in a.go)"}; !reflect.DeepEqual(viols, want) {
		t.Fatalf("violations = %q, want %q", viols, want)
	}

	AssertNoDirectImports(t, dir, InternalImport, "no internal imports")
}

func TestTransitiveDependencyCheckUsesGoList(t *testing.T) {
	prev := goListDeps
	t.Cleanup(func() { goListDeps = prev })
	var pattern string
	goListDeps = func(p string) ([]byte, error) {
		pattern = p
		return []byte("context\ntissuecore/pkg/domain\n\n"), nil
	}
	AssertNoTransitiveDependency(t, "./pkg/...", TransportImport, "pure")
	if pattern != "./pkg/..." {
		t.Fatalf("go list pattern = %q", pattern)
	}
}
