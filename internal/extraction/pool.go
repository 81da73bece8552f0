package extraction

import "strings"

// minTokenLength filters out placeholder values like "changeme" that end
// up in env files; real API keys are well past this.
const minTokenLength = 20

// Credential is an API token together with its position in the pool.
type Credential struct {
	Token string
	Index int
}

// Pool holds an ordered, deduplicated set of provider credentials and a
// rotation cursor. A Pool is not safe for concurrent use; the pipeline
// runs a single worker.
type Pool struct {
	tokens []string
	index  int
}

// NewPool builds a pool from raw tokens, dropping blank or too-short
// entries and duplicates while preserving order. An empty pool is a
// valid value; callers check Size before use.
func NewPool(rawTokens []string) *Pool {
	seen := make(map[string]struct{})
	tokens := make([]string, 0, len(rawTokens))
	for _, t := range rawTokens {
		t = strings.TrimSpace(t)
		if len(t) < minTokenLength {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return &Pool{tokens: tokens}
}

// Current returns the credential at the rotation cursor. The second
// return is false when the pool is empty.
func (p *Pool) Current() (Credential, bool) {
	if len(p.tokens) == 0 {
		return Credential{}, false
	}
	return Credential{Token: p.tokens[p.index], Index: p.index}, true
}

// Rotate advances the cursor to the next credential, wrapping at the end.
// In-flight calls made with the previous token are unaffected.
func (p *Pool) Rotate() {
	if len(p.tokens) == 0 {
		return
	}
	p.index = (p.index + 1) % len(p.tokens)
}

// Size returns the number of usable credentials in the pool.
func (p *Pool) Size() int {
	return len(p.tokens)
}
