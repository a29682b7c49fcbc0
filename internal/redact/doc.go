// Package redact rewrites text given a non-overlapping finding set and a
// masking strategy, and renders a unified diff of the change for review.
package redact
