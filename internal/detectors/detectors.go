package detectors

import (
	"sort"

	"github.com/privaudit/privaudit/internal/logging"
	"github.com/privaudit/privaudit/internal/types"
)

// Detect runs every rule over text and merges extra, which holds findings
// already produced and validated by extensions. The result is sorted by
// Start and pairwise non-overlapping.
func (r *Registry) Detect(text string, extra ...types.Finding) []types.Finding {
	cands, _ := r.candidates(text)
	cands = append(cands, extra...)
	return Resolve(cands)
}

// candidates returns the matches that passed their rule's validator and the
// ones that did not.
func (r *Registry) candidates(text string) (kept, rejected []types.Finding) {
	for _, rule := range r.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			f := types.Finding{Kind: rule.Kind, Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]}
			if r.validate(rule, f.Text) {
				kept = append(kept, f)
			} else {
				rejected = append(rejected, f)
			}
		}
	}
	return kept, rejected
}

// validate isolates a misbehaving validator: a panic rejects the candidate.
func (r *Registry) validate(rule Rule, match string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn("validator panicked, dropping candidate", "kind", rule.Kind, "validator", rule.Validator, "panic", logging.Unsafe(p))
			ok = false
		}
	}()
	return rule.Validate(match)
}

// Resolve sorts candidates by start ascending, longer first on ties, and
// keeps a finding only when it starts at or after the end of the last kept
// one. Equal spans keep the earlier candidate.
func Resolve(cands []types.Finding) []types.Finding {
	sorted := append([]types.Finding(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})
	out := make([]types.Finding, 0, len(sorted))
	lastEnd := -1
	for _, f := range sorted {
		if f.Start >= lastEnd {
			out = append(out, f)
			lastEnd = f.End
		}
	}
	return out
}
