package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
)

func runDescribe(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("describe", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() {
		fmt.Fprintln(out, "Usage: formgen-tools describe [options]")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Options:")
		flags.PrintDefaults()
	}

	schemaDir := flags.String("schema-dir", envOr("SCHEMA_DIR", ""), "Directory containing JSON schema files")
	entity := flags.String("entity", "", "Entity to describe (all entities when empty)")
	asJSON := flags.Bool("json", false, "Print descriptors as JSON")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *schemaDir == "" {
		return fmt.Errorf("-schema-dir must be provided")
	}

	registry, err := internal.NewSchemaRegistryFromDirectory(*schemaDir)
	if err != nil {
		return err
	}

	entities := registry.ListEntities()
	if *entity != "" {
		entities = []string{*entity}
	}

	described := make(map[string][]formgen.PropertyDescriptor, len(entities))
	for _, name := range entities {
		props, err := registry.GetProperties(context.Background(), name)
		if err != nil {
			return err
		}
		described[name] = props
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(described)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tPROPERTY\tKIND\tTYPE\tTARGET")
	for _, name := range entities {
		for _, p := range described[name] {
			declared := p.DeclaredType
			if p.IsIdentifier {
				declared += " (id)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, p.Name, p.Kind, declared, p.TargetEntityType)
		}
	}
	return tw.Flush()
}
