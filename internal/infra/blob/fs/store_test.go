package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"

	"tissuecore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)

	info, err := s.Put(ctx, "works/SGP1/report.txt", strings.NewReader("hello"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err = s.Put(ctx, "works/SGP1/report.txt", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, errors.AlreadyExists) {
		t.Fatalf("second put: expected already exists, got %v", err)
	}

	head, err := s.Head(ctx, "works/SGP1/report.txt")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ContentType != "text/plain" {
		t.Fatalf("content type = %q", head.ContentType)
	}

	got, rc, err := s.Get(ctx, "works/SGP1/report.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "hello" || got.ETag != info.ETag {
		t.Fatalf("got %q etag %s", body, got.ETag)
	}

	existed, err := s.Delete(ctx, "works/SGP1/report.txt")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, err = os.Stat(filepath.Join(s.Root(), "works", "SGP1", "report.txt.meta")); !os.IsNotExist(err) {
		t.Fatalf("metadata sidecar left behind: %v", err)
	}

	existed, err = s.Delete(ctx, "works/SGP1/report.txt")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}

	if _, _, err = s.Get(ctx, "works/SGP1/report.txt"); !errors.Is(err, errors.NotFound) {
		t.Fatalf("get deleted: expected not found, got %v", err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)
	for _, key := range []string{"works/B/x", "works/A/y", "misc/z"} {
		if _, err := s.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := s.List(ctx, "works/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "works/A/y" || list[1].Key != "works/B/x" {
		t.Fatalf("list = %+v", list)
	}
}

func TestRejectsKeysOutsideRoot(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)
	for _, key := range []string{"", "/etc/passwd", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, errors.NotValid) {
			t.Fatalf("key %q: expected not valid, got %v", key, err)
		}
	}
}

func TestDefaultRoot(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	s, err := New("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.Root() != DefaultRoot {
		t.Fatalf("root = %q, want %q", s.Root(), DefaultRoot)
	}
	if _, err := os.Stat(filepath.Join(dir, "blobdata")); err != nil {
		t.Fatalf("default root not created: %v", err)
	}
}
