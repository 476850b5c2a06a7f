package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/factory"
	"github.com/lychee-technology/formgen/internal"
)

func runGenerate(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("generate", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() {
		fmt.Fprintln(out, "Usage: formgen-tools generate -entity <name> [options]")
		fmt.Fprintln(out, "")
		fmt.Fprintln(out, "Options:")
		flags.PrintDefaults()
	}

	cfg := formgen.DefaultConfig()
	entity := flags.String("entity", "", "Entity to generate a form for")
	flags.StringVar(&cfg.Schema.Directory, "schema-dir", envOr("SCHEMA_DIR", ""), "Directory containing JSON schema files")
	flags.StringVar(&cfg.Schema.S3.Bucket, "schema-bucket", envOr("SCHEMA_S3_BUCKET", ""), "S3 bucket holding schema files (used when -schema-dir is empty)")
	flags.StringVar(&cfg.Schema.S3.Prefix, "schema-prefix", envOr("SCHEMA_S3_PREFIX", ""), "S3 key prefix of schema files")
	flags.StringVar(&cfg.Store.Driver, "driver", envOr("STORE_DRIVER", formgen.StoreDriverMemory), "Entity store driver: pgx, postgres, sqlite, duckdb or memory")
	flags.StringVar(&cfg.Store.DSN, "dsn", envOr("STORE_DSN", ""), "Store DSN (fixture JSON path for the memory driver)")
	blacklist := flags.String("blacklist", "", "Comma separated properties to leave out")
	whitelist := flags.String("whitelist", "", "Comma separated properties to keep")
	email := flags.String("email", "", "Comma separated properties rendered as email inputs")
	password := flags.String("password", "", "Comma separated properties rendered as password inputs")
	toOne := flags.String("to-one", string(formgen.ToOneSelect), "Field kind for single references: select or radio")
	toMany := flags.String("to-many", string(formgen.ToManyMultiCheckbox), "Field kind for collection references: multiselect or multicheckbox")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *entity == "" {
		return fmt.Errorf("-entity must be provided")
	}

	cfg.Form.PropertyBlacklist = internal.SplitList(*blacklist)
	cfg.Form.PropertyWhitelist = internal.SplitList(*whitelist)
	cfg.Form.EmailProperties = internal.SplitList(*email)
	cfg.Form.PasswordProperties = internal.SplitList(*password)
	cfg.Form.ToOneChoice = formgen.ToOneChoice(*toOne)
	cfg.Form.ToManyChoice = formgen.ToManyChoice(*toMany)

	ctx := context.Background()
	components, err := factory.NewGeneratorWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer components.Close()

	form, err := components.Generator.Generate(ctx, *entity)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(form)
}
