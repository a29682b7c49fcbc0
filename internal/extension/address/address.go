// Package address provides the address_cn extension: it detects mainland
// Chinese street addresses in four major cities and collapses each masked
// address span into a fixed placeholder.
package address

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/privaudit/privaudit/internal/types"
)

// Kind is the finding kind this provider emits.
const Kind = "address_cn"

// Placeholder replaces address text during the transform phase.
const Placeholder = "[地址已脱敏]"

var reAddress = regexp.MustCompile(`(北京市|上海市|广州市|深圳市).{0,20}(区|路|街|号)`)

// Provider implements both extension capabilities.
type Provider struct{}

// New returns the address provider.
func New() *Provider { return &Provider{} }

func (*Provider) Name() string { return Kind }

func (*Provider) Detect(_ context.Context, text string) ([]types.Finding, error) {
	var out []types.Finding
	for _, loc := range reAddress.FindAllStringIndex(text, -1) {
		out = append(out, types.Finding{Kind: Kind, Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]})
	}
	return out, nil
}

// Transform replaces the address_cn spans of findings, which locate the
// masked text in the buffer. A span the buffer no longer holds is left alone.
func (*Provider) Transform(_ context.Context, text string, findings []types.Finding) (string, error) {
	fs := append([]types.Finding(nil), findings...)
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Start < fs[j].Start })

	var b strings.Builder
	cursor := 0
	for _, f := range fs {
		if f.Kind != Kind || f.Start < cursor || f.End > len(text) || text[f.Start:f.End] != f.Text {
			continue
		}
		b.WriteString(text[cursor:f.Start])
		b.WriteString(Placeholder)
		cursor = f.End
	}
	if cursor == 0 {
		return text, nil
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}
