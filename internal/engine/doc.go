// Package engine runs the detect, redact and record pipeline over single
// documents and over file trees. This package is internal; external
// consumers should use the stable facade in pkg/core.
package engine
