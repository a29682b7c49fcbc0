// Package privaudit provides the command-line interface for privaudit. It
// configures subcommands (redact, detect, log, verify, report, etc.), parses
// flags, and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/privaudit/privaudit/cmd/privaudit"
//	func main() { privaudit.Execute() }
package privaudit
