// Package stringutil provides string helpers for display formatting.
package stringutil

import (
	"unicode"
)

// isWordRune reports whether r counts as a word character.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// CommonPrefix returns the longest shared prefix of all elements, backed
// off to the last non-word rune so words are never cut in half. With
// fewer than two elements there is nothing common, so it returns "".
func CommonPrefix(elements []string) string {
	if len(elements) <= 1 {
		return ""
	}
	// The lexicographic min and max bound the shared prefix of the set.
	min, max := elements[0], elements[0]
	for _, s := range elements[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	s1 := []rune(min)
	s2 := []rune(max)
	minLen := len(s1)
	if len(s2) < minLen {
		minLen = len(s2)
	}
	if minLen <= 0 {
		return ""
	}
	i := 0
	for i < minLen && s1[i] == s2[i] {
		i++
	}
	for i > 0 && isWordRune(s1[i-1]) {
		i--
	}
	return string(s1[:i])
}

// CommonSuffix returns the longest shared suffix of all elements,
// mirroring CommonPrefix.
func CommonSuffix(elements []string) string {
	reversed := make([]string, len(elements))
	for i, s := range elements {
		reversed[i] = reverse(s)
	}
	return reverse(CommonPrefix(reversed))
}

// RemovePrefix strips the common prefix from every element.
func RemovePrefix(elements []string) []string {
	pre := len([]rune(CommonPrefix(elements)))
	out := make([]string, len(elements))
	for i, s := range elements {
		out[i] = string([]rune(s)[pre:])
	}
	return out
}

// RemoveSuffix strips the common suffix from every element.
func RemoveSuffix(elements []string) []string {
	suf := len([]rune(CommonSuffix(elements)))
	out := make([]string, len(elements))
	for i, s := range elements {
		runes := []rune(s)
		out[i] = string(runes[:len(runes)-suf])
	}
	return out
}

// RemoveCommonTrails strips both the common suffix and the common prefix
// from every element. Used to shorten episode titles that repeat the
// series name.
func RemoveCommonTrails(elements []string) []string {
	return RemovePrefix(RemoveSuffix(elements))
}
