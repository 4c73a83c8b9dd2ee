// Package metrics implements denotation accuracy over normalized answer sets.
package metrics

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrLengthMismatch reports gold and prediction sequences of unequal length.
var ErrLengthMismatch = errors.New("metrics: gold and prediction counts differ")

// NormalizeToken canonicalizes an answer string for comparison: lower-cased,
// surrounding whitespace and quotes removed, internal whitespace runs
// collapsed, trailing punctuation trimmed. When stripping thousands
// separators, a trailing "%", and a leading "$" leaves a parseable number,
// the stripped numeric form is returned; otherwise the symbols stay as part
// of the token. It is idempotent.
func NormalizeToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `"'`)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .,")

	t := strings.ReplaceAll(s, ",", "")
	t = strings.TrimSuffix(t, "%")
	t = strings.TrimPrefix(t, "$")

	if _, err := decimal.NewFromString(t); err == nil {
		return t
	}
	return s
}

// SplitPrediction breaks a free-text prediction into candidate answer tokens.
// With a single gold answer the whole prediction is one token, delimiters
// included. With multiple gold answers the text is split on "|", falling back
// to "," when no pipe produced more than one piece. A multi-answer prediction
// with no delimiter at all comes back as a single token; under-matching is
// left to the accuracy comparison rather than treated as an error. Tokens
// are trimmed but otherwise untouched; comparison normalizes later. The
// single-answer branch normalizes up front since the whole text is already
// the final token.
func SplitPrediction(pred string, goldCount int) []string {
	txt := strings.TrimSpace(pred)
	if goldCount <= 1 {
		return []string{NormalizeToken(txt)}
	}

	parts := splitNonEmpty(txt, "|")
	if len(parts) <= 1 {
		if alt := splitNonEmpty(txt, ","); len(alt) > 1 {
			parts = alt
		}
	}
	if len(parts) == 0 {
		return []string{txt}
	}
	return parts
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// DenotationAccuracy returns the fraction of examples whose normalized
// prediction set equals the normalized gold set. The two sequences must be
// parallel; a length mismatch returns ErrLengthMismatch rather than silently
// truncating. Empty input yields 0.0.
func DenotationAccuracy(golds, preds [][]string) (float64, error) {
	if len(golds) != len(preds) {
		return 0, ErrLengthMismatch
	}
	if len(golds) == 0 {
		return 0, nil
	}

	correct := 0
	for i := range golds {
		if SetsEqual(golds[i], preds[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(golds)), nil
}

// SetsEqual reports whether two answer slices denote the same normalized set.
// Order and duplicates are ignored; two empty slices are equal.
func SetsEqual(gold, pred []string) bool {
	return setEq(normalizedSet(gold), normalizedSet(pred))
}

func normalizedSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[NormalizeToken(s)] = struct{}{}
	}
	return out
}

func setEq(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
