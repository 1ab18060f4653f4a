package names

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		id       int64
		expected string
		ok       bool
	}{
		{id: 1, expected: "All-Class 1", ok: true},
		{id: 38, expected: "All-Class 38", ok: true},
		{id: 39, expected: "Ancient Relic", ok: true},
		{id: 40, expected: "Assassin 1", ok: true},
		{id: 44, expected: "Assassin 5", ok: true},
		{id: 45, expected: "Assassin", ok: true},
		{id: 56, expected: "Common 1", ok: true},
		{id: 67, expected: "Common 12", ok: true},
		{id: 83, expected: "Fighter 1", ok: true},
		{id: 106, expected: "Numeraire 1", ok: true},
		{id: 130, expected: "Range 13", ok: true},
		{id: 134, expected: "Riverman 1", ok: true},
		{id: 142, expected: "Seed of Life 1", ok: true},
		{id: 143, expected: "Seed of Life 2", ok: true},
		{id: 149, expected: "Siege 6", ok: true},
		{id: 159, expected: "Spellcaster 6", ok: true},
		{id: 164, expected: "Witches Broom", ok: true},
		{id: 0, ok: false},
		{id: 101, ok: false},
		{id: 165, ok: false},
	}

	for _, tt := range tests {
		name, ok := Lookup(big.NewInt(tt.id))
		assert.Equal(t, tt.ok, ok, "id %d", tt.id)
		assert.Equal(t, tt.expected, name, "id %d", tt.id)
	}

	_, ok := Lookup(nil)
	assert.False(t, ok)
}
