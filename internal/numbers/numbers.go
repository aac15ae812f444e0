// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package numbers

import (
	"math/big"
)

// ZeroBigInt defines 0 as *big.Int type.
var ZeroBigInt = big.NewInt(0)

// OneBigInt defines 1 as *big.Int type.
var OneBigInt = big.NewInt(1)

// MaxUInt128Value defines maximum value of uint128 type.
var MaxUInt128Value = new(big.Int).Sub(new(big.Int).Lsh(OneBigInt, 128), OneBigInt)

// IsPositive returns true if the number is greater than zero.
func IsPositive(num *big.Int) bool {
	return num != nil && num.Sign() > 0
}

// IsZero returns true if the number is zero or not set.
func IsZero(num *big.Int) bool {
	return num == nil || num.Sign() == 0
}

// IsGreater returns true is a > b.
func IsGreater(a, b *big.Int) bool {
	return a.Cmp(b) > 0
}

// IsEqual returns true is a = b.
func IsEqual(a, b *big.Int) bool {
	return a.Cmp(b) == 0
}

// IsLess returns true is a < b.
func IsLess(a, b *big.Int) bool {
	return a.Cmp(b) < 0
}

// IsUint128 returns true if the number fits into unsigned 128 bits.
func IsUint128(num *big.Int) bool {
	return num != nil && num.Sign() >= 0 && !IsGreater(num, MaxUInt128Value)
}

// Sum returns a new number holding the sum of provided values, nil values are skipped.
func Sum(values ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, value := range values {
		if value != nil {
			total.Add(total, value)
		}
	}

	return total
}
