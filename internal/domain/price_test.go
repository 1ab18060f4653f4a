package domain

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		wei      *uint256.Int
		expected string
	}{
		{name: "zero", wei: uint256.NewInt(0), expected: "0"},
		{name: "nil", wei: nil, expected: "0"},
		{name: "whole", wei: uint256.MustFromDecimal("3000000000000000000"), expected: "3"},
		{name: "fraction", wei: uint256.MustFromDecimal("1500000000000000000"), expected: "1.5"},
		{name: "sub unit", wei: uint256.MustFromDecimal("1000000000000000"), expected: "0.001"},
		{name: "one wei", wei: uint256.NewInt(1), expected: "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPrice(tt.wei))
		})
	}
}

func TestMulQuantity(t *testing.T) {
	assert.Equal(t, "30", MulQuantity(uint256.NewInt(10), 3).Dec())
	assert.True(t, MulQuantity(uint256.NewInt(10), -1).IsZero())
}

func TestInt64Saturates(t *testing.T) {
	assert.Equal(t, int64(0), Int64(big.NewInt(-5)))
	assert.Equal(t, int64(7), Int64(big.NewInt(7)))
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	assert.Equal(t, int64(^uint64(0)>>1), Int64(huge))
}
