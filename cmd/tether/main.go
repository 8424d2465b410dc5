// Package main provides a CLI for managing tether entity mappings.
//
// The CLI supports:
//   - validate: Check a mapping document and compile it into a registry
//   - generate: Produce Go code with descriptor registrations from a mapping
//   - doctor: Run health checks against the mapped database
//
// This tool is typically run during development and deployment to keep
// the mapping document, the generated code, and the database in agreement.
//
// Commands that require database access (doctor) need --db or
// TETHER_DATABASE_URL. Commands that only work with files (validate,
// generate) do not need database access.
package main

func main() {
	Execute()
}
