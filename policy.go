package stf

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Policy is the injected configuration for the mutation engine and the
// validator. The alias and duplicate lists are a policy choice, not a
// structural one, so they live here instead of being hard-coded at call
// sites; DefaultPolicy carries the conventional static-web set.
type Policy struct {
	// ForbiddenAliases maps non-canonical basenames to the canonical one.
	ForbiddenAliases map[string]string `yaml:"forbidden_aliases"`
	// DuplicateSensitive lists singleton basenames that must never fork
	// into index2.html-style copies.
	DuplicateSensitive []string `yaml:"duplicate_sensitive"`
	// SensitivePaths lists basenames whose delete/move needs an explicit
	// safety keyword in the reason.
	SensitivePaths []string `yaml:"sensitive_paths"`
	// SafetyKeywords are the words that make a delete/move reason explicit.
	SafetyKeywords []string `yaml:"safety_keywords"`
	// RequiredFiles must exist in a finished file set.
	RequiredFiles []string `yaml:"required_files"`
	// NamingPattern is the convention checked against every basename.
	NamingPattern string `yaml:"naming_pattern"`
	// MaxFixRounds bounds the auto-fix loop.
	MaxFixRounds int `yaml:"max_fix_rounds"`

	namingRe *regexp.Regexp
}

func DefaultPolicy() *Policy {
	p := &Policy{
		ForbiddenAliases: map[string]string{
			"styles.css":     "style.css",
			"stylesheet.css": "style.css",
			"scripts.js":     "script.js",
		},
		DuplicateSensitive: []string{"index.html", "style.css", "script.js"},
		SensitivePaths: []string{
			"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
			"tsconfig.json", "vite.config.js", "vite.config.ts", "webpack.config.js",
		},
		SafetyKeywords: []string{"refactor", "unused", "safe", "route"},
		RequiredFiles:  []string{"index.html"},
		NamingPattern:  `^[a-z0-9][a-z0-9._-]*$`,
		MaxFixRounds:   3,
	}
	p.compile()
	return p
}

// LoadPolicy reads a YAML policy file, overlaying defaults. A .env file is
// loaded first so STF_* variables can steer the lookup.
func LoadPolicy(path string) (*Policy, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("STF_CONFIG")
	}
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read policy file: %w", err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("could not parse policy file: %w", err)
	}
	if p.MaxFixRounds <= 0 {
		p.MaxFixRounds = 3
	}
	p.compile()
	return p, nil
}

func (p *Policy) compile() {
	if p.NamingPattern != "" {
		p.namingRe, _ = regexp.Compile(p.NamingPattern)
	}
}

func (p *Policy) CanonicalAlias(basename string) (string, bool) {
	canonical, ok := p.ForbiddenAliases[strings.ToLower(basename)]
	return canonical, ok
}

func (p *Policy) IsDuplicateSensitive(basename string) bool {
	basename = strings.ToLower(basename)
	for _, b := range p.DuplicateSensitive {
		if basename == strings.ToLower(b) {
			return true
		}
	}
	return false
}

func (p *Policy) IsSensitivePath(path string) bool {
	base := strings.ToLower(basenameOf(path))
	for _, b := range p.SensitivePaths {
		if base == strings.ToLower(b) {
			return true
		}
	}
	return false
}

// ReasonIsExplicit reports whether a delete/move reason contains a safety
// keyword that authorizes touching a sensitive path.
func (p *Policy) ReasonIsExplicit(reason string) bool {
	reason = strings.ToLower(reason)
	for _, kw := range p.SafetyKeywords {
		if strings.Contains(reason, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (p *Policy) NameConforms(basename string) bool {
	if p.namingRe == nil {
		return true
	}
	return p.namingRe.MatchString(basename)
}
