package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyuri/twmap/internal/binary"
	"github.com/dyuri/twmap/internal/datafile"
	"github.com/dyuri/twmap/internal/model"
)

func writeMap(t *testing.T, path string) {
	t.Helper()
	b := datafile.NewBuilder()
	b.AddItem(int(model.ItemVersion), 0, binary.PutWords([]int32{1}))
	b.AddItem(int(model.ItemGroup), 0, binary.PutWords([]int32{2, 0, 0, 100, 100, 0, 1, 0, 0, 0, 0, 0}))
	b.AddItem(int(model.ItemLayer), 0, binary.PutWords([]int32{0, 2, 0, 2, 2, 2, 1, 255, 255, 255, 255, -1, 0, -1, -1}))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create map: %v", err)
	}
	defer f.Close()
	if _, err := b.WriteTo(f); err != nil {
		t.Fatalf("write map: %v", err)
	}
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.map")
	out := filepath.Join(dir, "out.map")
	writeMap(t, in)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs([]string{"rewrite", in, "-o", out})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "Successfully rewrote") {
		t.Errorf("stderr = %q, want the success message", stderr.String())
	}

	want, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("rewritten map differs from its input")
	}
}
