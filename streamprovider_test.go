package xisf

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystemProviderRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inside.bin"), []byte("safe"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	secret := filepath.Join(t.TempDir(), "secret.bin")
	if err := os.WriteFile(secret, []byte("outside"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cases := []struct {
		name     string
		location string
	}{
		{"parent traversal", "../secret.bin"},
		{"nested traversal", "sub/../../secret.bin"},
		{"absolute path", secret},
	}

	provider := FileSystemProvider{BaseDir: dir}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := provider.Open(context.Background(), tc.location)
			if !errors.Is(err, ErrPathEscapesBaseDir) {
				t.Fatalf("Open(%q) error = %v, want ErrPathEscapesBaseDir", tc.location, err)
			}
		})
	}
}

func TestFileSystemProviderOpensWithinBaseDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inside.bin"), []byte("safe bytes"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	provider := FileSystemProvider{BaseDir: dir}
	rc, err := provider.Open(context.Background(), "inside.bin")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "safe bytes" {
		t.Fatalf("got %q, want %q", got, "safe bytes")
	}
}

func TestExternalStreamProviderDispatchesOnIsPath(t *testing.T) {
	t.Parallel()

	fileProvider := fakeProvider{data: map[string][]byte{"local.bin": []byte("from file")}}
	uriProvider := fakeProvider{data: map[string][]byte{"http://example.com/x": []byte("from uri")}}
	opts := ReaderOptions{FileStreamProvider: fileProvider, URIStreamProvider: uriProvider}

	pathBlock := DataBlock{Location: BlockExternal, URI: "local.bin", ExternalIsPath: true}
	rc, err := externalStreamProvider(opts, pathBlock).Open(context.Background(), pathBlock.URI)
	if err != nil {
		t.Fatalf("Open(path block): %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "from file" {
		t.Fatalf("path block resolved via %q, want %q", got, "from file")
	}

	urlBlock := DataBlock{Location: BlockExternal, URI: "http://example.com/x"}
	rc, err = externalStreamProvider(opts, urlBlock).Open(context.Background(), urlBlock.URI)
	if err != nil {
		t.Fatalf("Open(url block): %v", err)
	}
	got, err = io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "from uri" {
		t.Fatalf("url block resolved via %q, want %q", got, "from uri")
	}
}
