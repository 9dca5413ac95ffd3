package staticserve

import (
	"fmt"
	"regexp"

	"ipr-host/pkg/config"
)

// compiledRule is a RewriteRule with its pattern compiled.
type compiledRule struct {
	name     string
	pattern  *regexp.Regexp
	target   string
	redirect bool
}

// Rewriter applies an ordered rewrite rule list to request paths. An empty
// rule list is the identity: every path is served literally, nothing is
// redirected to an entry page.
type Rewriter struct {
	rules []compiledRule
}

// NewRewriter compiles the configured rules in order.
func NewRewriter(rules []config.RewriteRule) (*Rewriter, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rewrite rule %q: invalid pattern: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{
			name:     rule.Name,
			pattern:  re,
			target:   rule.Target,
			redirect: rule.Redirect,
		})
	}
	return &Rewriter{rules: compiled}, nil
}

// Apply returns the rewritten path for the first matching rule, along with
// whether the match is an external redirect. Without a match the path comes
// back unchanged.
func (rw *Rewriter) Apply(path string) (string, bool) {
	for _, rule := range rw.rules {
		if rule.pattern.MatchString(path) {
			return rule.pattern.ReplaceAllString(path, rule.target), rule.redirect
		}
	}
	return path, false
}

// Empty reports whether no rules are configured.
func (rw *Rewriter) Empty() bool {
	return len(rw.rules) == 0
}
