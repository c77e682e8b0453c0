package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const classPage = `<html><body>
<div class="doc doc-object doc-class">
<div class="doc-signature"></div>
<div class="doc doc-contents first">
<p>Docs.</p>
<div class="doc doc-children">
<div class="doc doc-object doc-function"></div>
</div>
</div>
</div>
</body></html>`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := Execute()
	return out.String(), err
}

func TestInit_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docdecor.yml")

	if _, err := run(t, "init", "--config", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "site_dir: site") {
		t.Errorf("unexpected config:\n%s", data)
	}

	if _, err := run(t, "init", "--config", path); err == nil {
		t.Error("expected init to refuse overwriting without --force")
	}
}

func TestDecorate_Site(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "index.html")
	if err := os.WriteFile(page, []byte(classPage), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(t.TempDir(), "missing.yml")

	out, err := run(t, "decorate", root, "--config", cfg, "--no-progress")
	if err != nil {
		t.Fatalf("decorate: %v", err)
	}
	if !strings.Contains(out, "1 changed") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	data, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<h4 class="section-header">Members:</h4>`) {
		t.Errorf("page was not decorated:\n%s", data)
	}
}

func TestDecorate_MissingSite(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.yml")
	if _, err := run(t, "decorate", filepath.Join(t.TempDir(), "nope"), "--config", cfg); err == nil {
		t.Fatal("expected error for missing site directory")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "docdecor ") {
		t.Errorf("unexpected version output %q", out)
	}
}
