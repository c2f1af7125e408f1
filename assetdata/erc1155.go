package assetdata

import "math/big"

// ERC1155 ids follow the mintable-token convention: the top bit marks a
// non-fungible type, the upper 128 bits carry the type and the lower 128 bits
// the index of the unit within the type.
var (
	nonFungibleBit = new(big.Int).Lsh(big.NewInt(1), 255)
	indexMask      = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// IsNonFungibleID reports whether an ERC1155 id names a unique unit
func IsNonFungibleID(id *big.Int) bool {
	if id == nil {
		return false
	}
	return id.Bit(255) == 1
}

// FungibleID returns the ERC1155 id of a fungible type
func FungibleID(typeIndex uint64) *big.Int {
	return new(big.Int).Lsh(new(big.Int).SetUint64(typeIndex), 128)
}

// NonFungibleID returns the id of unit index within non-fungible type typeIndex
func NonFungibleID(typeIndex, index uint64) *big.Int {
	id := new(big.Int).Lsh(new(big.Int).SetUint64(typeIndex), 128)
	id.Or(id, nonFungibleBit)
	return id.Or(id, new(big.Int).And(new(big.Int).SetUint64(index), indexMask))
}
