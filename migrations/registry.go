// Package migrations exposes the embedded schema to persistence clients.
// The tree ships exactly two dialects: postgres files at the root of
// data/sql/migrations, sqlite variants under its sqlite/ subdirectory.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	payments "github.com/goliatone/go-payments"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	sourceLabel   = "go-payments"
	migrationsDir = "data/sql/migrations"
	sqliteSubdir  = "sqlite"
)

// FilesystemSpec pairs a dialect with its migration tree.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect's migration filesystem. Implementations
// typically hand it to a persistence client's migration runner.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type registration struct {
	targets map[string]bool
}

type Option func(*registration)

// WithValidationTargets limits Register to the named dialects. Without it
// both dialects register.
func WithValidationTargets(dialects ...string) Option {
	return func(r *registration) {
		for _, dialect := range dialects {
			name := strings.TrimSpace(strings.ToLower(dialect))
			if name != "" {
				r.targets[name] = true
			}
		}
	}
}

// Filesystems resolves the embedded migration trees, one entry per dialect.
// Pass a filesystem to resolve from an override tree with the same layout.
// Each resolved tree must carry at least one *.up.sql file.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := payments.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	postgresFS, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, sqliteSubdir)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s/%s not found: %w", migrationsDir, sqliteSubdir, err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: postgresFS},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + sqliteSubdir, FS: sqliteFS},
	}
	for _, spec := range specs {
		ups, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: scan %s tree: %w", spec.Dialect, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q carries no *.up.sql files", spec.Dialect, spec.Path)
		}
	}

	return specs, nil
}

// Register resolves the embedded trees and hands each requested dialect to
// registerFn. It returns the specs it registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]FilesystemSpec, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}

	reg := registration{targets: map[string]bool{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if len(reg.targets) == 0 {
		reg.targets[DialectPostgres] = true
		reg.targets[DialectSQLite] = true
	}

	specs, err := Filesystems()
	if err != nil {
		return nil, err
	}

	registered := make([]FilesystemSpec, 0, len(specs))
	for _, spec := range specs {
		if !reg.targets[spec.Dialect] {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, sourceLabel, spec.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s: %w", spec.Dialect, err)
		}
		registered = append(registered, spec)
	}

	return registered, nil
}
