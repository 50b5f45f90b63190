// Package classify maps proxy node labels to a country code and a flag-decorated
// display name.
package classify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedRegion is returned when no rule matches a label.
var ErrUnrecognizedRegion = errors.New("unrecognized region")

// Result is the outcome of classifying one label.
type Result struct {
	Name      string // flag + original label, after replacements
	Code      Code
	Flag      string
	HighSpeed bool // HK node on a dedicated line or the carrier alias
}

// Classifier evaluates an ordered rule table. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	rules        []Rule
	replacements []Replacement
}

// New returns a Classifier over rules (first match wins) and replacements.
func New(rules []Rule, replacements []Replacement) *Classifier {
	return &Classifier{
		rules:        rules,
		replacements: replacements,
	}
}

// Default returns a Classifier over DefaultRules and DefaultReplacements.
func Default() *Classifier {
	return New(DefaultRules, DefaultReplacements)
}

// Classify tags label with the first matching rule.
func (c *Classifier) Classify(label string) (Result, error) {
	r, ok := c.match(label)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnrecognizedRegion, label)
	}

	name := r.Flag + " " + label
	for _, rep := range c.replacements {
		name = strings.ReplaceAll(name, rep.Old, rep.New)
	}

	return Result{
		Name:      name,
		Code:      r.Code,
		Flag:      r.Flag,
		HighSpeed: r.Code == HK && isHighSpeed(name),
	}, nil
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c *Classifier) match(label string) (Rule, bool) {
	for _, r := range c.rules {
		if r.Pattern.MatchString(label) {
			return r, true
		}
	}
	return Rule{}, false
}

func isHighSpeed(name string) bool {
	return strings.Contains(name, MarkerDedicatedLine) || strings.Contains(name, MarkerCarrierAlias)
}
