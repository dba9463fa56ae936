// Package quality evaluates candidate passwords against the core's
// length, entropy, and bad-word-list policy before a set-primary-password
// edit is allowed to proceed.
package quality

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/byteness/credsession/cserrors"
)

// Entropy is the result of an entropy estimate for a candidate password.
// Score follows the zxcvbn convention: 0 (trivially guessable) through 4
// (very strong).
type Entropy struct {
	Score       int
	Suggestions []string
	Warning     string
}

// Estimator is the out-of-scope password-entropy primitive. userInputs
// carries related-input hints (account name, display name, SPN, etc.)
// that a real implementation uses to penalize passwords derived from the
// user's own identity.
type Estimator interface {
	Estimate(password string, userInputs []string) Entropy
}

// Config tunes the policy. The zero value is usable: MinLength defaults
// to 8 and MinScore to 4 when left at zero, matching §4.6's policy.
type Config struct {
	MinLength int
	MinScore  int
	BadWords  map[string]struct{}
}

func (c Config) minLength() int {
	if c.MinLength == 0 {
		return 8
	}
	return c.MinLength
}

func (c Config) minScore() int {
	if c.MinScore == 0 {
		return 4
	}
	return c.MinScore
}

// Evaluate runs the three-step policy in order: length, entropy,
// bad-word list. Every failure is a *cserrors.Error of code
// PasswordQuality: a too-short or bad-listed password carries a single
// explanatory feedback entry, a low entropy score carries the
// estimator's suggestions and warning.
func Evaluate(cfg Config, estimator Estimator, password string, relatedInputs []string) error {
	if len(password) < cfg.minLength() {
		return cserrors.PasswordQuality([]string{fmt.Sprintf("password must be at least %d characters", cfg.minLength())})
	}

	entropy := estimator.Estimate(password, relatedInputs)
	if entropy.Score < cfg.minScore() {
		feedback := append([]string{}, entropy.Suggestions...)
		if entropy.Warning != "" {
			feedback = append(feedback, entropy.Warning)
		}
		if len(feedback) == 0 {
			feedback = []string{"password is too weak"}
		}
		return cserrors.PasswordQuality(feedback)
	}

	if cfg.BadWords != nil {
		if _, listed := cfg.BadWords[strings.ToLower(password)]; listed {
			return cserrors.PasswordQuality([]string{"password appears in the prohibited word list"})
		}
	}

	return nil
}

// badList is the on-disk shape of a bad-word-list file.
type badList struct {
	Words []string `yaml:"words"`
}

// LoadBadList reads a YAML bad-word list from path and returns it as a
// lookup set suitable for Config.BadWords.
func LoadBadList(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed badList
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(parsed.Words))
	for _, w := range parsed.Words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set, nil
}
