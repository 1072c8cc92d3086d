package db

import (
	"context"
	"testing"
)

const poolMigrationTestPrefix = "db:pool_migration_test"

// MigrationDown does not touch the pool, so a nil pool is fine here.
func TestMigrationDown_ReturnsNil(t *testing.T) {
	if err := MigrationDown(context.Background(), nil, ""); err != nil {
		t.Errorf("%s - MigrationDown returned %v, want nil", poolMigrationTestPrefix, err)
	}
}

func TestRunMigrations_EmptyListSkipsPool(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, nil); err != nil {
		t.Errorf("%s - RunMigrations with no files returned %v, want nil", poolMigrationTestPrefix, err)
	}
}
