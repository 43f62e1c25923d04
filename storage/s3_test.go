package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// memStore ist ein In-Memory-ObjectStore für einen Bucket.
type memStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	m.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memStore) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix, delim := aws.ToString(in.Prefix), aws.ToString(in.Delimiter)
	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, key := range m.sortedKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, delim); delim != "" && i >= 0 {
			cp := prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
			}
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (m *memStore) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memStore) sortedKeys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestSnapshotPrefix(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))
	tests := []struct {
		prefix string
		want   string
	}{
		{"gallery", "gallery/snapshots/2026-03-14T08-26-53Z/"},
		{"/gallery/", "gallery/snapshots/2026-03-14T08-26-53Z/"},
		{"a/b", "a/b/snapshots/2026-03-14T08-26-53Z/"},
		{"", "snapshots/2026-03-14T08-26-53Z/"},
	}
	for _, tc := range tests {
		if got := snapshotPrefix(tc.prefix, at); got != tc.want {
			t.Errorf("snapshotPrefix(%q) = %q, want %q", tc.prefix, got, tc.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("a/1.json"); got != "application/json" {
		t.Errorf("contentType(json) = %q", got)
	}
	if got := contentType("a/README"); got != "" {
		t.Errorf("contentType(no ext) = %q", got)
	}
}

func TestPublishTreeAndRotate(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"index.json":                    `{"datasets": []}`,
		"datasets/algebra/pages/1.json": `{"samples": []}`,
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store := newMemStore()
	store.objects["gallery/README.txt"] = []byte("not a snapshot")
	p := &Publisher{Client: store, Bucket: "showcase", Prefix: "gallery", Keep: 2}
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var snapshots []string
	for i := 0; i < 3; i++ {
		snapshot, n, err := p.PublishTree(ctx, dir, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("PublishTree() error = %v", err)
		}
		if n != len(files) {
			t.Errorf("uploaded %d files, want %d", n, len(files))
		}
		snapshots = append(snapshots, snapshot)
	}

	key := snapshots[0] + "datasets/algebra/pages/1.json"
	if got := string(store.objects[key]); got != `{"samples": []}` {
		t.Errorf("object %s = %q", key, got)
	}
	if ct := store.contentTypes[key]; ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	deleted, err := p.RotateSnapshots(ctx)
	if err != nil {
		t.Fatalf("RotateSnapshots() error = %v", err)
	}
	if len(deleted) != 1 || deleted[0] != snapshots[0] {
		t.Errorf("deleted = %v, want [%s]", deleted, snapshots[0])
	}
	for k := range store.objects {
		if strings.HasPrefix(k, snapshots[0]) {
			t.Errorf("object %s of rotated snapshot still present", k)
		}
	}
	for _, s := range snapshots[1:] {
		if _, ok := store.objects[s+"index.json"]; !ok {
			t.Errorf("snapshot %s was removed", s)
		}
	}
	if _, ok := store.objects["gallery/README.txt"]; !ok {
		t.Error("object outside snapshots was removed")
	}

	deleted, err = p.RotateSnapshots(ctx)
	if err != nil || len(deleted) != 0 {
		t.Errorf("second rotation = %v, %v; want nothing deleted", deleted, err)
	}
}
