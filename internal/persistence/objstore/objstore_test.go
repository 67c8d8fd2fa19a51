package objstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNormalizeObjectKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"saves/a.zst", "saves/a.zst"},
		{"/saves//a.zst", "saves/a.zst"},
		{`saves\backup\a.zst`, "saves/backup/a.zst"},
		{"../a.zst", "a.zst"},
		{"", ""},
		{"/", ""},
	}
	for _, tc := range cases {
		if got := normalizeObjectKey(tc.in); got != tc.want {
			t.Fatalf("normalizeObjectKey(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Endpoint: "r2.example.com", Bucket: "b"}); err == nil {
		t.Fatalf("expected error without credentials")
	}
	c, err := New(Config{Endpoint: "r2.example.com/", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.endpoint != "https://r2.example.com" || c.region != "auto" {
		t.Fatalf("endpoint=%q region=%q", c.endpoint, c.region)
	}
}

func TestPutFileSignsAndUploads(t *testing.T) {
	var (
		gotPath, gotAuth, gotDate string
		gotBody                   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("x-amz-date")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Bucket: "xc", Region: "eu", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "a b.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "saves/a b.zst", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if gotPath != "/xc/saves/a b.zst" {
		t.Fatalf("path=%q", gotPath)
	}
	if string(gotBody) != "payload" {
		t.Fatalf("body=%q", gotBody)
	}
	if gotDate != "20260102T030405Z" {
		t.Fatalf("x-amz-date=%q", gotDate)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AK/20260102/eu/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("authorization=%q", gotAuth)
	}
}

func TestPutFileReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, _ := New(Config{Endpoint: srv.URL, Bucket: "xc", AccessKeyID: "AK", SecretAccessKey: "SK"})
	local := filepath.Join(t.TempDir(), "a.zst")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	err := c.PutFile(context.Background(), "a.zst", local)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v want status=403", err)
	}
}

type fakePutter struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakePutter) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsRelativeKeys(t *testing.T) {
	dir := t.TempDir()
	saves := filepath.Join(dir, "worlds", "w1", "saves")
	if err := os.MkdirAll(saves, 0o755); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(saves, "000000000100.xcsave.zst")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	outside := filepath.Join(t.TempDir(), "other.zst")
	_ = os.WriteFile(outside, []byte("x"), 0o644)

	p := &fakePutter{fails: 1}
	m := NewMirror(p, MirrorConfig{DataDir: dir, Prefix: "/prod/", Attempts: 2})
	m.Enqueue(local)
	m.Enqueue(outside)
	m.Enqueue(filepath.Join(saves, "missing.zst"))
	m.Close()

	if len(p.keys) != 1 || p.keys[0] != "prod/worlds/w1/saves/000000000100.xcsave.zst" {
		t.Fatalf("keys=%v", p.keys)
	}
	st := m.Stats()
	if st.Enqueued != 3 || st.Uploaded != 1 || st.Failed != 2 || st.Dropped != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestMirrorGivesUpAfterAttempts(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "a.zst")
	_ = os.WriteFile(local, []byte("x"), 0o644)

	p := &fakePutter{fails: 5}
	m := NewMirror(p, MirrorConfig{DataDir: dir, Attempts: 3})
	m.Enqueue(local)
	m.Close()

	if st := m.Stats(); st.Failed != 1 || st.Uploaded != 0 || st.LastError == 0 {
		t.Fatalf("stats=%+v", st)
	}
	if p.fails != 2 {
		t.Fatalf("attempts=%d want 3", 5-p.fails)
	}
}
