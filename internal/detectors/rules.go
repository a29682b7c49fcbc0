package detectors

import (
	_ "embed"
	"regexp"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// MaxPatternLen bounds the source length of user-supplied patterns.
const MaxPatternLen = 4096

// Rule is one named detection rule. Patterns are RE2, so matching time is
// linear in the input regardless of the pattern.
type Rule struct {
	Kind      string
	Pattern   *regexp.Regexp
	Validator string
	validate  Validator
}

// Validate applies the rule's validator; rules without one accept everything.
func (r Rule) Validate(match string) bool {
	if r.validate == nil {
		return true
	}
	return r.validate(match)
}

// RuleSpec is the YAML shape of a rule in the extended set and in user rule
// files.
type RuleSpec struct {
	Kind      string `yaml:"kind"`
	Pattern   string `yaml:"pattern"`
	Validator string `yaml:"validator,omitempty"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

var baseSpecs = []RuleSpec{
	{Kind: "email", Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}`},
	{Kind: "phone_cn", Pattern: `\b1[3-9]\d{9}\b`},
	{Kind: "id_card_cn", Pattern: `\b\d{6}(19|20)\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])\d{3}[0-9Xx]\b`},
	{Kind: "bank_card", Pattern: `\b\d{12,19}\b`, Validator: "luhn"},
}

//go:embed rules/extended.yaml
var extendedYAML []byte

// Compile turns a spec into a Rule.
func Compile(s RuleSpec) (Rule, error) {
	if s.Kind == "" {
		return Rule{}, errors.New("rule has no kind")
	}
	if len(s.Pattern) == 0 || len(s.Pattern) > MaxPatternLen {
		return Rule{}, errors.Newf("rule %q: pattern length %d outside [1,%d]", s.Kind, len(s.Pattern), MaxPatternLen)
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "rule %q", s.Kind)
	}
	r := Rule{Kind: s.Kind, Pattern: re, Validator: s.Validator}
	if s.Validator != "" {
		fn, ok := validators[s.Validator]
		if !ok {
			return Rule{}, errors.Newf("rule %q: unknown validator %q", s.Kind, s.Validator)
		}
		r.validate = fn
	}
	return r, nil
}

// ParseRules decodes a YAML rule document.
func ParseRules(b []byte) ([]RuleSpec, error) {
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse rules")
	}
	return f.Rules, nil
}

// BaseRules returns the built-in base set in registration order.
func BaseRules() []Rule {
	out := make([]Rule, 0, len(baseSpecs))
	for _, s := range baseSpecs {
		r, err := Compile(s)
		if err != nil {
			panic(err)
		}
		out = append(out, r)
	}
	return out
}

// extendedRules compiles the embedded extended set. Any failure discards the
// whole set.
func extendedRules() ([]Rule, error) {
	specs, err := ParseRules(extendedYAML)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := Compile(s)
		if err != nil {
			return nil, errors.Wrap(err, "extended rule set")
		}
		out = append(out, r)
	}
	return out, nil
}
