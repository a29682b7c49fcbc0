// Package config loads privaudit configuration from local and global YAML
// files and PRIVAUDIT_* environment variables. It is internal; CLI code maps
// flags and the merged file config into engine and ledger configuration.
package config
