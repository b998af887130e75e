package sqlite

import (
	"fmt"
	"math/rand"
)

// sameIDSet checks that want is a permutation of have.
func sameIDSet(have, want []int64) error {
	if len(have) != len(want) {
		return fmt.Errorf("expected %d ids, got %d", len(have), len(want))
	}
	members := make(map[int64]bool, len(have))
	for _, id := range have {
		members[id] = false
	}
	for _, id := range want {
		seen, ok := members[id]
		if !ok {
			return fmt.Errorf("id %d is not part of the set", id)
		}
		if seen {
			return fmt.Errorf("id %d listed twice", id)
		}
		members[id] = true
	}
	return nil
}

// placeAt returns ids with id removed and reinserted at index. The index is
// clamped to the bounds of the resulting slice.
func placeAt(ids []int64, id int64, index int) []int64 {
	out := without(ids, id)
	if index < 0 {
		index = 0
	}
	if index > len(out) {
		index = len(out)
	}
	out = append(out, 0)
	copy(out[index+1:], out[index:])
	out[index] = id
	return out
}

// without returns a copy of ids with every occurrence of id removed.
func without(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func randomPaletteColor() string {
	palette := []string{
		"#2563eb", // blue-600
		"#7c3aed", // violet-600
		"#dc2626", // red-600
		"#059669", // green-600
		"#ea580c", // orange-600
		"#d97706", // amber-600
		"#0ea5e9", // sky-500
	}
	return palette[rand.Intn(len(palette))]
}
