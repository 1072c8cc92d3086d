// Package main is the entrypoint for nexus-server.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Println(flagsErr.Message)
				return
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			os.Exit(1)
		}
		log.Fatalf("nexus-server: %v", err)
	}
}

// run parses args and executes the selected command. No command means serve.
func run(args []string) error {
	switch {
	case len(args) == 0:
		args = []string{"serve"}
	case args[0] == "help":
		args = []string{"--help"}
	}
	_, err := newParser(&Options{}).ParseArgs(args)
	return err
}

func newParser(opts *Options) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "nexus-server"
	parser.LongDescription = "Serves the Nexus greeting service over COMMS request/reply and HTTP JSON-RPC.\n\n" +
		"Environment: COMMS_URL, NEXUS_SUBJECT, DATABASE_URL (optional for serve; empty = in-memory store), " +
		"MIGRATION_PATH, NEXUS_HTTP_ADDR / HTTP_PORT."
	return parser
}
