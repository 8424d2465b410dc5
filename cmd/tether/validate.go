package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetherhq/tether/internal/cli"
	"github.com/tetherhq/tether/mapping"
)

var validateMapping string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a mapping document",
	Long:  `Validate a mapping document and compile it into a descriptor registry.`,
	Example: `  # Validate a specific mapping file
  tether validate --mapping tether.mapping.yaml

  # Validate using config file settings
  tether validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolve mapping path: flag > config > default
		mappingPath := resolveString(validateMapping, cfg.Mapping)

		data, err := os.ReadFile(mappingPath)
		if err != nil {
			return cli.MappingParseError(fmt.Sprintf("mapping not found: %s", mappingPath), nil)
		}

		doc, err := mapping.Parse(data)
		if err != nil {
			return cli.MappingParseError("parsing mapping", err)
		}

		reg, err := mapping.Build(doc)
		if err != nil {
			return cli.MappingParseError("compiling registry", err)
		}

		if !quiet {
			fmt.Printf("Mapping is valid. Found %d entities:\n", len(reg.Names()))
			for _, name := range reg.Names() {
				d, _ := reg.Lookup(name)
				fmt.Printf("  - %s (%d properties)\n", name, len(d.Properties()))
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateMapping, "mapping", "", "path to the mapping document")
}
