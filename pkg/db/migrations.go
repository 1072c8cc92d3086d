package db

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

const migrationsLogPrefix = "db:migrations"

// LoadMigrationFiles reads all .sql files from dir, sorted by name, and returns their contents.
// dir is a local path or any URL afs understands (file://, mem://, http://).
// Subdirectories and non-.sql files are ignored.
func LoadMigrationFiles(dir string) ([]string, error) {
	ctx := context.Background()
	fs := afs.New()

	objects, err := fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var files []storage.Object
	for _, o := range objects {
		if o.IsDir() || path.Ext(o.Name()) != ".sql" {
			continue
		}
		files = append(files, o)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var out []string
	for _, o := range files {
		data, err := fs.Download(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, o.URL(), err)
		}
		out = append(out, string(data))
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir))
	return out, nil
}
