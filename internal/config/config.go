// Package config holds the server's startup configuration: the
// command-line surface's resolved values, plus validation and the
// tilde-expansion/trailing-slash normalisation the original applies to
// the document root before anything else runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config is everything the dispatcher needs to start serving. It is
// built from command-line flags (see cmd/darkhttpd) and is immutable
// once constructed.
type Config struct {
	// Root is the document root, already tilde-expanded and stripped
	// of any trailing slash.
	Root string `validate:"required,dir"`
	// Addr is the interface to bind to; "" means all interfaces.
	Addr string
	// Port is the TCP port to listen on.
	Port int `validate:"gte=0,lte=65535"`
	// MaxConn is the listen(2) backlog; 0 means "system default".
	MaxConn int `validate:"gte=0"`
	// LogPath is the access log path, or "" to disable access logging.
	LogPath string
	// Chroot requests the process jail itself into Root after startup.
	// Actually dropping into the chroot is peripheral process glue
	// (see SPEC_FULL.md Ambient Stack); this flag only records intent.
	Chroot bool
	// IndexName is the filename substituted for a directory request.
	IndexName string `validate:"required"`
	// MimeTypesPath, if non-empty, is loaded to augment the compiled-in
	// MIME table.
	MimeTypesPath string
}

// Default returns a Config with every field at the original server's
// documented defaults, with Root left for the caller to fill in (it has
// no default - it is always the required positional argument).
func Default() Config {
	return Config{
		Port:      80,
		IndexName: "index.html",
	}
}

// ResolveRoot expands a leading "~" against the current user's home
// directory and strips one trailing slash, matching the original
// server's handling of the positional document-root argument.
func ResolveRoot(root string) (string, error) {
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve %q: %w", root, err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		root = "/"
	}
	return root, nil
}

// Validate checks every field's struct tag and returns a single error
// describing every constraint violation, or nil if the config is
// well-formed.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("config: %w", err)
		}
		var msgs []string
		for _, fe := range err.(validator.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("field %q fails constraint %q", fe.Field(), fe.ActualTag()))
		}
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}
