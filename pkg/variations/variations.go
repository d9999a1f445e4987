// Package variations generates every substitution of wildcard characters in a word.
package variations

import (
	"iter"
	"strings"
)

// Wildcard marks a position to substitute.
const Wildcard = '*'

// All yields every string obtained by replacing each wildcard in template
// with a character of alphabet, in Cartesian-product order with the leftmost
// wildcard varying slowest. Duplicates in alphabet produce duplicate strings.
// Characters taken from alphabet are never substituted again.
func All(template, alphabet string) iter.Seq[string] {
	return func(yield func(string) bool) {
		tmpl := []rune(template)
		var slots []int
		for i, r := range tmpl {
			if r == Wildcard {
				slots = append(slots, i)
			}
		}
		if len(slots) == 0 {
			yield(template)
			return
		}
		chars := []rune(alphabet)
		if len(chars) == 0 {
			return
		}

		idx := make([]int, len(slots))
		out := make([]rune, len(tmpl))
		copy(out, tmpl)
		for {
			for k, pos := range slots {
				out[pos] = chars[idx[k]]
			}
			if !yield(string(out)) {
				return
			}
			k := len(idx) - 1
			for ; k >= 0; k-- {
				idx[k]++
				if idx[k] < len(chars) {
					break
				}
				idx[k] = 0
			}
			if k < 0 {
				return
			}
		}
	}
}

// Expand returns the distinct substitutions of template in product order.
func Expand(template, alphabet string) []string {
	return ExpandAll([]string{template}, alphabet)
}

// ExpandAll is the union of Expand over templates, deduplicated, in first-seen order.
func ExpandAll(templates []string, alphabet string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range templates {
		for v := range All(t, alphabet) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Count is the number of strings All yields, len(alphabet)^wildcards.
// It saturates at the largest int.
func Count(template, alphabet string) int {
	n := strings.Count(template, string(Wildcard))
	if n == 0 {
		return 1
	}
	base := len([]rune(alphabet))
	total := 1
	const maxInt = int(^uint(0) >> 1)
	for range n {
		if base != 0 && total > maxInt/base {
			return maxInt
		}
		total *= base
	}
	return total
}
