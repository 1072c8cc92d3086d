package main

// Options is the root command that groups sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Serve    ServeCmd    `command:"serve" description:"Start serving Nexus requests on NEXUS_SUBJECT (default)"`
	Migrate  MigrateCmd  `command:"migrate" description:"Manage operation store migrations"`
	EnsureDB EnsureDBCmd `command:"ensure-db" description:"Create the database on the same host as DATABASE_URL if missing"`
}

// MigrateCmd groups the migrate sub-commands.
type MigrateCmd struct {
	Up     MigrateUpCmd     `command:"up" description:"Run operation store migrations"`
	Down   MigrateDownCmd   `command:"down" description:"Report that down migrations are not supported"`
	Status MigrateStatusCmd `command:"status" description:"Show current migration status"`
}
