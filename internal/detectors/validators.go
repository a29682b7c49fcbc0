package detectors

import (
	"sort"

	v "github.com/privaudit/privaudit/internal/validate"
)

// Validator is a plausibility predicate over a matched substring.
type Validator func(match string) bool

// validators maps the names usable from rule files to their predicates.
var validators = map[string]Validator{
	"luhn":           v.Luhn,
	"card_strict":    func(s string) bool { return v.Luhn(s) && v.KnownCardIssuer(s) },
	"id_card_cn":     v.ChineseIDChecksum,
	"iban":           v.IBAN,
	"github_token":   v.LooksLikeGitHubToken,
	"aws_access_key": v.LooksLikeAWSAccessKey,
	"jwt":            v.IsJWTStructure,
}

// ValidatorNames lists the registered validator names, sorted.
func ValidatorNames() []string {
	out := make([]string, 0, len(validators))
	for name := range validators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Policy selects how strictly numeric identifiers are validated.
type Policy string

const (
	// PolicyPermissive accepts any 12-19 digit run passing Luhn as a card.
	PolicyPermissive Policy = "permissive"
	// PolicyStrict also requires a known issuer prefix for cards and a
	// valid check character for resident ID numbers.
	PolicyStrict Policy = "strict"
)

// policyValidators returns validator overrides by kind for p.
func policyValidators(p Policy) map[string]string {
	if p == PolicyStrict {
		return map[string]string{
			"bank_card":  "card_strict",
			"id_card_cn": "id_card_cn",
		}
	}
	return nil
}
