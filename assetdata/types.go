// Package assetdata implements the self-describing asset descriptors carried in
// orders and their proxy-id tagged ABI encoding.
package assetdata

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind identifies the asset standard behind a descriptor
type Kind uint8

const (
	KindFungible Kind = iota + 1
	KindNonFungible
	KindSemiFungible
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindFungible:
		return "Fungible"
	case KindNonFungible:
		return "NonFungible"
	case KindSemiFungible:
		return "SemiFungible"
	case KindComposite:
		return "Composite"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ProxyID is the four byte tag that prefixes every encoded descriptor
type ProxyID [4]byte

func (p ProxyID) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

func proxyIDFromSignature(signature string) ProxyID {
	var id ProxyID
	copy(id[:], crypto.Keccak256([]byte(signature))[:4])
	return id
}

// Proxy ids, derived from the function signatures the asset proxies register under
var (
	ERC20ProxyID      = proxyIDFromSignature("ERC20Token(address)")
	ERC721ProxyID     = proxyIDFromSignature("ERC721Token(address,uint256)")
	ERC1155ProxyID    = proxyIDFromSignature("ERC1155Assets(address,uint256[],uint256[],bytes)")
	MultiAssetProxyID = proxyIDFromSignature("MultiAsset(uint256[],bytes[])")
)

// Descriptor is the closed set of asset kinds: Fungible, NonFungible,
// SemiFungible and Composite.
type Descriptor interface {
	Kind() Kind
	ProxyID() ProxyID
	String() string
	descriptor()
}

// Fungible is an ERC20 token
type Fungible struct {
	Token common.Address
}

func (Fungible) Kind() Kind       { return KindFungible }
func (Fungible) ProxyID() ProxyID { return ERC20ProxyID }
func (Fungible) descriptor()      {}
func (f Fungible) String() string { return fmt.Sprintf("ERC20(%s)", f.Token.Hex()) }

// NonFungible is a single ERC721 token
type NonFungible struct {
	Token   common.Address
	TokenID *big.Int
}

func (NonFungible) Kind() Kind       { return KindNonFungible }
func (NonFungible) ProxyID() ProxyID { return ERC721ProxyID }
func (NonFungible) descriptor()      {}
func (n NonFungible) String() string {
	return fmt.Sprintf("ERC721(%s, %s)", n.Token.Hex(), bigString(n.TokenID))
}

// SemiFungible is a batch of ERC1155 ids. Values[i] is the number of units of
// IDs[i] moved per unit of order amount.
type SemiFungible struct {
	Token        common.Address
	IDs          []*big.Int
	Values       []*big.Int
	CallbackData []byte
}

func (SemiFungible) Kind() Kind       { return KindSemiFungible }
func (SemiFungible) ProxyID() ProxyID { return ERC1155ProxyID }
func (SemiFungible) descriptor()      {}
func (s SemiFungible) String() string {
	parts := make([]string, len(s.IDs))
	for i := range s.IDs {
		var value *big.Int
		if i < len(s.Values) {
			value = s.Values[i]
		}
		parts[i] = bigString(s.IDs[i]) + "x" + bigString(value)
	}
	return fmt.Sprintf("ERC1155(%s, [%s])", s.Token.Hex(), strings.Join(parts, " "))
}

// Composite bundles other descriptors. Weights[i] units of Children[i] move per
// unit of order amount.
type Composite struct {
	Weights  []*big.Int
	Children []Descriptor
}

func (Composite) Kind() Kind       { return KindComposite }
func (Composite) ProxyID() ProxyID { return MultiAssetProxyID }
func (Composite) descriptor()      {}
func (c Composite) String() string {
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		var weight *big.Int
		if i < len(c.Weights) {
			weight = c.Weights[i]
		}
		parts[i] = bigString(weight) + "*" + child.String()
	}
	return fmt.Sprintf("MultiAsset([%s])", strings.Join(parts, " "))
}

func bigString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// Equal reports whether two descriptors describe the same asset. Descriptors
// that cannot be encoded are never equal.
func Equal(a, b Descriptor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	encA, err := Encode(a)
	if err != nil {
		return false
	}
	encB, err := Encode(b)
	if err != nil {
		return false
	}
	return string(encA) == string(encB)
}
