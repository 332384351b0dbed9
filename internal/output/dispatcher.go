package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/pipeline"
)

// jaroWinklerThreshold is the similarity floor for accepting a near-miss
// token as a phonetic hit for a rule keyword.
const jaroWinklerThreshold = 0.85

// rule is a compiled command rule.
type rule struct {
	pattern  *regexp.Regexp
	action   string
	phonetic bool
	// keywords are the literal words of the pattern, with their Double
	// Metaphone codes, used for phonetic near-miss matching.
	keywords []keyword
}

type keyword struct {
	word  string
	codes map[string]struct{}
}

// Dispatcher routes transcripts through an ordered command rule table before
// normal text delivery. Rules are evaluated in configuration order and the
// first match wins: its shell action runs instead of delivering the text.
// Unmatched transcripts fall through to the inner sink.
//
// Rules flagged phonetic additionally match when every keyword of the
// pattern aligns with a spoken token by Double Metaphone code or
// Jaro-Winkler similarity, tolerating near-miss recognitions such as
// "opened terminal" for "open terminal".
type Dispatcher struct {
	rules []rule
	inner pipeline.Sink

	// runAction executes a matched rule's action. Replaceable in tests.
	runAction func(ctx context.Context, action string) error
}

// NewDispatcher compiles the rule table. An invalid pattern fails
// construction; config validation normally catches these earlier.
func NewDispatcher(rules []config.CommandRule, inner pipeline.Sink) (*Dispatcher, error) {
	d := &Dispatcher{inner: inner, runAction: runShell}
	for i, rc := range rules {
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("output: commands[%d].pattern: %w", i, err)
		}
		r := rule{pattern: re, action: rc.Action, phonetic: rc.Phonetic}
		if rc.Phonetic {
			for _, w := range patternWords(rc.Pattern) {
				r.keywords = append(r.keywords, keyword{word: w, codes: metaphoneCodes(w)})
			}
		}
		d.rules = append(d.rules, r)
	}
	return d, nil
}

// Deliver checks the rule table and either runs the matched action or passes
// the text to the inner sink.
func (d *Dispatcher) Deliver(ctx context.Context, text string) error {
	norm := normalize(text)
	for _, r := range d.rules {
		if !r.matches(norm) {
			continue
		}
		slog.Info("command rule matched", "pattern", r.pattern.String(), "action", r.action)
		if err := d.runAction(ctx, r.action); err != nil {
			return fmt.Errorf("output: command action %q: %w", r.action, err)
		}
		return nil
	}
	return d.inner.Deliver(ctx, text)
}

var _ pipeline.Sink = (*Dispatcher)(nil)

func (r rule) matches(norm string) bool {
	if r.pattern.MatchString(norm) {
		return true
	}
	if !r.phonetic || len(r.keywords) == 0 {
		return false
	}
	tokens := strings.Fields(norm)
	for _, kw := range r.keywords {
		if !tokenHit(kw, tokens) {
			return false
		}
	}
	return true
}

// tokenHit reports whether any spoken token aligns with the keyword, first by
// Double Metaphone code overlap, then by Jaro-Winkler similarity.
func tokenHit(kw keyword, tokens []string) bool {
	for _, tok := range tokens {
		p, s := matchr.DoubleMetaphone(tok)
		if p != "" {
			if _, ok := kw.codes[p]; ok {
				return true
			}
		}
		if s != "" {
			if _, ok := kw.codes[s]; ok {
				return true
			}
		}
		if matchr.JaroWinkler(tok, kw.word, false) >= jaroWinklerThreshold {
			return true
		}
	}
	return false
}

func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// normalize lowercases the transcript and strips everything but letters,
// digits and spaces, collapsing runs of whitespace, so rule patterns match
// regardless of the engine's punctuation habits.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// patternWords extracts the literal alphabetic words of a pattern, skipping
// regex metacharacter runs.
func patternWords(pattern string) []string {
	return wordRe.FindAllString(strings.ToLower(pattern), -1)
}

var wordRe = regexp.MustCompile(`[a-z]{2,}`)

func runShell(ctx context.Context, action string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", action)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
