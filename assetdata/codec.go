package assetdata

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrDecode is matched by every error returned from Decode
var ErrDecode = errors.New("malformed asset data")

// DecodeError describes why an encoded descriptor was rejected
type DecodeError struct {
	Data    []byte
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed asset data 0x%x: %s", truncate(e.Data, 36), e.Message)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("failed to build abi type " + t + ": " + err.Error())
	}
	return typ
}

var (
	addressType   = mustType("address")
	uint256Type   = mustType("uint256")
	uint256sType  = mustType("uint256[]")
	bytesType     = mustType("bytes")
	bytesListType = mustType("bytes[]")

	erc20Arguments      = abi.Arguments{{Type: addressType}}
	erc721Arguments     = abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	erc1155Arguments    = abi.Arguments{{Type: addressType}, {Type: uint256sType}, {Type: uint256sType}, {Type: bytesType}}
	multiAssetArguments = abi.Arguments{{Type: uint256sType}, {Type: bytesListType}}
)

// Encode produces the proxy-id tagged encoding of a descriptor
func Encode(d Descriptor) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch v := d.(type) {
	case Fungible:
		body, err = erc20Arguments.Pack(v.Token)
	case NonFungible:
		if v.TokenID == nil {
			return nil, fmt.Errorf("erc721 asset data requires a token id")
		}
		body, err = erc721Arguments.Pack(v.Token, v.TokenID)
	case SemiFungible:
		if len(v.IDs) != len(v.Values) {
			return nil, fmt.Errorf("erc1155 asset data has %d ids and %d values", len(v.IDs), len(v.Values))
		}
		callbackData := v.CallbackData
		if callbackData == nil {
			callbackData = []byte{}
		}
		body, err = erc1155Arguments.Pack(v.Token, nonNil(v.IDs), nonNil(v.Values), callbackData)
	case Composite:
		if len(v.Weights) != len(v.Children) {
			return nil, fmt.Errorf("multi asset data has %d amounts and %d nested assets", len(v.Weights), len(v.Children))
		}
		nested := make([][]byte, len(v.Children))
		for i, child := range v.Children {
			nested[i], err = Encode(child)
			if err != nil {
				return nil, fmt.Errorf("failed to encode nested asset %d: %w", i, err)
			}
		}
		body, err = multiAssetArguments.Pack(nonNil(v.Weights), nested)
	case nil:
		return nil, fmt.Errorf("cannot encode nil asset descriptor")
	default:
		return nil, fmt.Errorf("unsupported asset descriptor %T", d)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s asset data: %w", d.Kind(), err)
	}

	proxyID := d.ProxyID()
	encoded := make([]byte, 0, len(proxyID)+len(body))
	encoded = append(encoded, proxyID[:]...)
	encoded = append(encoded, body...)
	return encoded, nil
}

// MustEncode is Encode for descriptors known to be well formed
func MustEncode(d Descriptor) []byte {
	encoded, err := Encode(d)
	if err != nil {
		panic("failed to encode asset data: " + err.Error())
	}
	return encoded
}

// Decode parses an encoded descriptor, recursing into nested multi-asset data
func Decode(data []byte) (Descriptor, error) {
	if len(data) < 4 {
		return nil, &DecodeError{Data: data, Message: fmt.Sprintf("length %d is shorter than a proxy id", len(data))}
	}
	var proxyID ProxyID
	copy(proxyID[:], data[:4])
	body := data[4:]

	switch proxyID {
	case ERC20ProxyID:
		values, err := erc20Arguments.Unpack(body)
		if err != nil {
			return nil, &DecodeError{Data: data, Message: err.Error()}
		}
		return Fungible{Token: values[0].(common.Address)}, nil

	case ERC721ProxyID:
		values, err := erc721Arguments.Unpack(body)
		if err != nil {
			return nil, &DecodeError{Data: data, Message: err.Error()}
		}
		return NonFungible{
			Token:   values[0].(common.Address),
			TokenID: values[1].(*big.Int),
		}, nil

	case ERC1155ProxyID:
		values, err := erc1155Arguments.Unpack(body)
		if err != nil {
			return nil, &DecodeError{Data: data, Message: err.Error()}
		}
		ids := values[1].([]*big.Int)
		amounts := values[2].([]*big.Int)
		if len(ids) != len(amounts) {
			return nil, &DecodeError{Data: data, Message: fmt.Sprintf("%d ids but %d values", len(ids), len(amounts))}
		}
		return SemiFungible{
			Token:        values[0].(common.Address),
			IDs:          ids,
			Values:       amounts,
			CallbackData: values[3].([]byte),
		}, nil

	case MultiAssetProxyID:
		values, err := multiAssetArguments.Unpack(body)
		if err != nil {
			return nil, &DecodeError{Data: data, Message: err.Error()}
		}
		weights := values[0].([]*big.Int)
		nested := values[1].([][]byte)
		if len(weights) != len(nested) {
			return nil, &DecodeError{Data: data, Message: fmt.Sprintf("%d amounts but %d nested assets", len(weights), len(nested))}
		}
		children := make([]Descriptor, len(nested))
		for i, childData := range nested {
			child, err := Decode(childData)
			if err != nil {
				return nil, &DecodeError{Data: data, Message: fmt.Sprintf("nested asset %d: %v", i, err)}
			}
			children[i] = child
		}
		return Composite{Weights: weights, Children: children}, nil

	default:
		return nil, &DecodeError{Data: data, Message: "unknown proxy id " + proxyID.String()}
	}
}

func nonNil(values []*big.Int) []*big.Int {
	if values == nil {
		return []*big.Int{}
	}
	return values
}
