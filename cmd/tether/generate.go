package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/internal/cli"
	"github.com/tetherhq/tether/internal/gen"
	"github.com/tetherhq/tether/mapping"
)

var (
	generateMapping string
	generateOutput  string
	generatePackage string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a descriptor registry from a mapping",
	Long:  `Generate Go source with entity constants and descriptor registrations from a mapping document.`,
	Example: `  # Generate into entities/registry_gen.go
  tether generate --mapping tether.mapping.yaml --output entities/registry_gen.go --package entities

  # Generate using config file settings
  tether generate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mappingPath := resolveString(generateMapping, cfg.Generate.Mapping, cfg.Mapping)
		output := resolveString(generateOutput, cfg.Generate.Output)
		pkg := resolveString(generatePackage, cfg.Generate.Package)

		if output == "" {
			return cli.ConfigError("no output path: set --output or generate.output", nil)
		}

		data, err := os.ReadFile(mappingPath)
		if err != nil {
			return cli.MappingParseError(fmt.Sprintf("mapping not found: %s", mappingPath), nil)
		}
		doc, err := mapping.Parse(data)
		if err != nil {
			return cli.MappingParseError("parsing mapping", err)
		}

		src, err := gen.Generate(doc, pkg)
		if err != nil {
			return cli.GeneralError("generating registry", err)
		}

		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return cli.GeneralError("creating output directory", err)
		}
		if err := os.WriteFile(output, src, 0o644); err != nil {
			return cli.GeneralError("writing output", err)
		}

		if !quiet {
			fmt.Printf("Generated %s from %s\n", output, mappingPath)
		}
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateMapping, "mapping", "", "path to the mapping document")
	f.StringVar(&generateOutput, "output", "", "output file for generated Go source")
	f.StringVar(&generatePackage, "package", "", "package name for generated code")
}
