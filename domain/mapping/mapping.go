// Package mapping holds the placeholder-to-cell configuration and the
// per-run replacement table built from it.
package mapping

import (
	"fmt"
	"strings"

	"ddreport/domain/cellref"
	"ddreport/internal/errors"
)

// Entry binds one literal placeholder token to the cell that supplies its value.
type Entry struct {
	Token string `yaml:"token"`
	Cell  string `yaml:"cell"`
}

// Mapping is the ordered placeholder configuration. Order matters: tokens
// are substituted in this order.
type Mapping []Entry

// Default returns the reference deployment mapping.
func Default() Mapping {
	return Mapping{
		{"{{A}}", "D2"}, {"{{B}}", "D3"},
		{"{{C}}", "D7"}, {"{{D}}", "C7"},
		{"{{E}}", "D8"}, {"{{F}}", "C8"},
		{"{{G}}", "D9"}, {"{{H}}", "C9"},
		{"{{I}}", "D10"}, {"{{J}}", "C10"},
		{"{{K}}", "D11"}, {"{{L}}", "C11"},
		{"{{M}}", "D12"}, {"{{N}}", "C12"},
		{"{{O}}", "D13"}, {"{{P}}", "C13"},
		{"{{Q}}", "D14"}, {"{{R}}", "C14"},
	}
}

// Validate checks that tokens are non-empty and unique and every cell parses.
func (m Mapping) Validate() error {
	if len(m) == 0 {
		return errors.ConfigInvalid("placeholder mapping is empty")
	}
	seen := make(map[string]bool, len(m))
	for i, e := range m {
		if e.Token == "" {
			return errors.ConfigInvalid(fmt.Sprintf("placeholder %d has an empty token", i+1))
		}
		if seen[e.Token] {
			return errors.ConfigInvalid(fmt.Sprintf("duplicate placeholder token %q", e.Token))
		}
		seen[e.Token] = true
		if _, err := cellref.Parse(e.Cell); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "placeholder %q", e.Token))
		}
	}
	return nil
}

// Tokens lists the configured tokens in order.
func (m Mapping) Tokens() []string {
	tokens := make([]string, len(m))
	for i, e := range m {
		tokens[i] = e.Token
	}
	return tokens
}

// FactCells names the cells holding the facts quoted in the narrative prompt.
type FactCells struct {
	Organization string `yaml:"organization"`
	Responsible  string `yaml:"responsible"`
	StartDate    string `yaml:"start_date"`
	EndDate      string `yaml:"end_date"`
}

// DefaultFactCells returns the reference deployment fact cells.
func DefaultFactCells() FactCells {
	return FactCells{
		Organization: "D2",
		Responsible:  "D3",
		StartDate:    "D5",
		EndDate:      "D6",
	}
}

// Validate checks every fact cell address, reporting the first bad one in
// declaration order.
func (f FactCells) Validate() error {
	for _, fact := range []struct{ name, addr string }{
		{"organization", f.Organization},
		{"responsible", f.Responsible},
		{"start_date", f.StartDate},
		{"end_date", f.EndDate},
	} {
		if _, err := cellref.Parse(fact.addr); err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "fact %s", fact.name))
		}
	}
	return nil
}

// ReplacementTable maps each configured token to its resolved value. Every
// token of the mapping it was built from is present, possibly with "".
type ReplacementTable struct {
	tokens []string
	values map[string]string
}

// NewReplacementTable returns an empty table.
func NewReplacementTable() *ReplacementTable {
	return &ReplacementTable{values: make(map[string]string)}
}

// Set records value for token, keeping first-insertion order.
func (t *ReplacementTable) Set(token, value string) {
	if _, ok := t.values[token]; !ok {
		t.tokens = append(t.tokens, token)
	}
	t.values[token] = value
}

// Get returns the value for token and whether the token is configured.
func (t *ReplacementTable) Get(token string) (string, bool) {
	v, ok := t.values[token]
	return v, ok
}

// Len is the number of tokens in the table.
func (t *ReplacementTable) Len() int {
	return len(t.tokens)
}

// Tokens lists the tokens in insertion order.
func (t *ReplacementTable) Tokens() []string {
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Replace substitutes every occurrence of every token in text, in table
// order. Matching is literal and case-sensitive. The second result reports
// whether any token was found.
func (t *ReplacementTable) Replace(text string) (string, bool) {
	matched := false
	for _, token := range t.tokens {
		if strings.Contains(text, token) {
			matched = true
			text = strings.ReplaceAll(text, token, t.values[token])
		}
	}
	return text, matched
}
