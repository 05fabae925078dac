package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRootStripsTrailingSlash(t *testing.T) {
	got, err := ResolveRoot("/var/www/")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/var/www" {
		t.Errorf("ResolveRoot = %q, want /var/www", got)
	}
}

func TestResolveRootExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got, err := ResolveRoot("~/www")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "www") {
		t.Errorf("ResolveRoot(~/www) = %q, want %q", got, filepath.Join(home, "www"))
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Port != 80 {
		t.Errorf("Port = %d, want 80", c.Port)
	}
	if c.IndexName != "index.html" {
		t.Errorf("IndexName = %q, want index.html", c.IndexName)
	}
}

func TestValidateRejectsMissingRoot(t *testing.T) {
	c := Default()
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for empty Root")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := Default()
	c.Root = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := Default()
	c.Root = t.TempDir()
	c.Port = 70000
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}
