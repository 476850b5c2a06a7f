package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/factory"
	"go.uber.org/zap"
)

type command struct {
	name    string
	summary string
	run     func(args []string, out io.Writer) error
}

var commands = []command{
	{"describe", "Print the properties read from entity schema files", runDescribe},
	{"generate", "Generate the form definition of an entity as JSON", runGenerate},
	{"init-db", "Create PostgreSQL tables holding id and display label of each entity", runInitDB},
}

func main() {
	logger, err := factory.NewLogger(formgen.LoggingConfig{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "console"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	for _, cmd := range commands {
		if cmd.name != os.Args[1] {
			continue
		}
		if err := cmd.run(os.Args[2:], os.Stdout); err != nil {
			zap.S().Fatalf("%s: %v", cmd.name, err)
		}
		return
	}

	zap.S().Errorf("unknown command %q", os.Args[1])
	printUsage(os.Stderr)
	os.Exit(1)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: formgen-tools <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
}

func envOr(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envIntOr(key string, def int) int {
	if parsed, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return parsed
	}
	return def
}
