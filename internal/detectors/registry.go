package detectors

import (
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Options controls which rules a Registry holds.
type Options struct {
	// Extended adds the embedded extended rule set ahead of the base set.
	Extended bool
	// RulesFile names an optional YAML file of additional rules.
	RulesFile string
	// Policy overrides validators for numeric identifier kinds.
	Policy Policy
	// Enable and Disable are comma-separated kind lists.
	Enable  string
	Disable string
	Logger  *slog.Logger
}

// Registry is an ordered, read-only set of rules.
type Registry struct {
	rules []Rule
	log   *slog.Logger
}

// NewRegistry builds a registry. It never fails: problems with the extended
// set or the rule file are logged and the registry degrades to what did load.
func NewRegistry(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "detectors")

	var rules []Rule
	if opts.Extended {
		ext, err := extendedRules()
		if err != nil {
			log.Warn("extended rule set unavailable, using base rules", "error", err)
		} else {
			rules = append(rules, ext...)
		}
	}
	if opts.RulesFile != "" {
		rules = append(rules, loadRuleFile(opts.RulesFile, log)...)
	}
	rules = append(rules, BaseRules()...)

	if overrides := policyValidators(opts.Policy); overrides != nil {
		for i := range rules {
			name, ok := overrides[rules[i].Kind]
			if !ok {
				continue
			}
			rules[i].Validator = name
			rules[i].validate = validators[name]
		}
	}
	return &Registry{rules: filterKinds(rules, opts.Enable, opts.Disable), log: log}
}

// NewBase returns a registry with only the base rules.
func NewBase() *Registry {
	return &Registry{rules: BaseRules(), log: slog.Default().With("component", "detectors")}
}

func loadRuleFile(path string, log *slog.Logger) []Rule {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Warn("rule file unreadable, skipping", "path", path, "error", err)
		return nil
	}
	specs, err := ParseRules(b)
	if err != nil {
		log.Warn("rule file malformed, skipping", "path", path, "error", err)
		return nil
	}
	var out []Rule
	for _, s := range specs {
		r, err := Compile(s)
		if err != nil {
			log.Warn("skipping rule", "path", path, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// LoadRuleFile compiles every rule in path and reports the first failure.
// It backs the CLI's rule linting; NewRegistry never fails on bad rules.
func LoadRuleFile(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rule file")
	}
	specs, err := ParseRules(b)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(specs))
	for _, s := range specs {
		r, err := Compile(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func filterKinds(rules []Rule, enable, disable string) []Rule {
	if enable == "" && disable == "" {
		return rules
	}
	allowed := splitSet(enable)
	blocked := splitSet(disable)
	var out []Rule
	for _, r := range rules {
		if enable != "" && !allowed[r.Kind] {
			continue
		}
		if blocked[r.Kind] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func splitSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}

// Rules returns a copy of the registry's rules in registration order.
func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Kinds returns the distinct kinds in registration order.
func (r *Registry) Kinds() []string {
	seen := map[string]bool{}
	var out []string
	for _, rule := range r.rules {
		if !seen[rule.Kind] {
			seen[rule.Kind] = true
			out = append(out, rule.Kind)
		}
	}
	return out
}
