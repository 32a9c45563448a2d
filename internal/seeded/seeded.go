// Package seeded implements the deterministic pseudo-randomness shared by
// the online viewer, the print preview and the PDF export path. All three
// must produce bit-identical shuffle orders for already-published
// worksheets, so the two generator variants below are frozen: changing
// either derivation silently reorders existing documents.
package seeded

import (
	"strings"
	"unicode/utf16"
)

// HashSeed folds a string into a 32-bit signed seed: seed = seed*31 + code
// unit, wrapping at 32 bits. Operates on UTF-16 code units to match the
// derivation used when the documents were authored.
func HashSeed(s string) int32 {
	var seed int32
	for _, cu := range utf16.Encode([]rune(s)) {
		seed = (seed << 5) - seed + int32(cu)
	}
	return seed
}

// LehmerNext is the Park-Miller minimal standard step: seed*16807 mod
// 2^31-1. The sign of a negative input carries through, callers take
// abs() when deriving an index.
func LehmerNext(seed int32) int32 {
	return int32((int64(seed) * 16807) % 2147483647)
}

// LCGNext is the additive-constant variant (1664525/1013904223, truncated
// to 32 bits) used only by inline-choice option shuffling. Not
// interchangeable with LehmerNext: persisted documents depend on which
// variant produced their displayed order.
func LCGNext(seed int32) int32 {
	return int32(int64(seed)*1664525 + 1013904223)
}

// lcgFloat maps an LCG state to [0,1) the way the original call sites did:
// reinterpret as unsigned, divide by 2^32-1.
func lcgFloat(seed int32) float64 {
	return float64(uint32(seed)) / float64(0xffffffff)
}

func abs32(v int32) int32 {
	if v < 0 {
		return int32(-int64(v))
	}
	return v
}

// Shuffle returns a new slice with the elements of list permuted by a
// Fisher-Yates pass seeded from key via HashSeed and stepped with
// LehmerNext. Pure: the input is never mutated, and the same key and input
// order always yield the same output order.
func Shuffle[T any](list []T, key string) []T {
	out := make([]T, len(list))
	copy(out, list)
	seed := HashSeed(key)
	for i := len(out) - 1; i > 0; i-- {
		seed = LehmerNext(seed)
		j := abs32(seed) % int32(i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Indexed pairs a shuffled element with its position in the input, so
// callers can track which option was originally first (the correct one).
type Indexed[T any] struct {
	Item          T
	OriginalIndex int
}

// ShuffleIndexed permutes list with the LCG variant, starting from the
// given integer seed. Used by inline-choice rendering.
func ShuffleIndexed[T any](list []T, seed int32) []Indexed[T] {
	out := make([]Indexed[T], len(list))
	for i, item := range list {
		out[i] = Indexed[T]{Item: item, OriginalIndex: i}
	}
	s := seed
	for i := len(out) - 1; i > 0; i-- {
		s = LCGNext(s)
		j := int(lcgFloat(s) * float64(i+1))
		if j > i {
			j = i
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Scramble reorders the letters of word with a Lehmer-stepped Fisher-Yates
// pass from the given seed. With keepFirst the first letter stays in place
// (a word of length <= 1 passes through untouched); with lowercase the
// whole result is lowercased by the caller's locale-neutral rules.
func Scramble(word string, keepFirst, lowercase bool, seed int32) string {
	letters := []rune(word)
	var first []rune
	if keepFirst && len(letters) > 1 {
		first = letters[:1]
		letters = letters[1:]
	}
	s := seed
	for i := len(letters) - 1; i > 0; i-- {
		s = LehmerNext(s)
		j := abs32(s) % int32(i+1)
		letters[i], letters[j] = letters[j], letters[i]
	}
	result := string(first) + string(letters)
	if lowercase {
		result = strings.ToLower(result)
	}
	return result
}

// ItemSeed derives the per-item scramble seed from the two stable
// identifiers an exercise item carries.
func ItemSeed(blockID, itemID string) int32 {
	return abs32(HashSeed(blockID + itemID))
}
