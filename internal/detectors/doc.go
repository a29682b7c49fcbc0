// Package detectors holds the rule registry and the detection engine. A
// Registry is built once from the base rules, the embedded extended set and
// an optional user rule file; Detect runs every rule over a text, drops
// candidates that fail their validator and resolves overlaps into a sorted,
// non-overlapping finding set.
package detectors
