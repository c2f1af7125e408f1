package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrReverted is matched by every *RevertError
var ErrReverted = errors.New("execution reverted")

// RevertKind names the exchange error a revert carried
type RevertKind int

const (
	RevertUnknown RevertKind = iota
	RevertString
	RevertOrderStatus
	RevertInvalidContext
	RevertFill
	RevertAssetProxyDispatch
	RevertAssetProxyTransfer
	RevertSignature
)

func (k RevertKind) String() string {
	switch k {
	case RevertString:
		return "Error"
	case RevertOrderStatus:
		return "OrderStatusError"
	case RevertInvalidContext:
		return "ExchangeInvalidContextError"
	case RevertFill:
		return "FillError"
	case RevertAssetProxyDispatch:
		return "AssetProxyDispatchError"
	case RevertAssetProxyTransfer:
		return "AssetProxyTransferError"
	case RevertSignature:
		return "SignatureError"
	default:
		return "Unknown"
	}
}

// Context error codes of ExchangeInvalidContextError
const (
	ContextInvalidMaker uint8 = iota
	ContextInvalidTaker
	ContextInvalidSender
)

// Fill error codes of FillError
const (
	FillErrorInvalidMakerAmount uint8 = iota
	FillErrorInvalidTakerAmount
	FillErrorTakerOverpay
	FillErrorOverfill
	FillErrorInvalidFillPrice
)

// Dispatch error codes of AssetProxyDispatchError
const (
	DispatchInvalidAssetDataLength uint8 = iota
	DispatchUnknownAssetProxy
)

// RevertError is a decoded exchange revert
type RevertError struct {
	Kind      RevertKind
	Code      uint8       // context, fill or dispatch error code
	Status    OrderStatus // set for RevertOrderStatus
	OrderHash common.Hash
	Reason    string // set for RevertString
	Data      []byte
}

func (e *RevertError) Error() string {
	switch e.Kind {
	case RevertString:
		return fmt.Sprintf("execution reverted: %s", e.Reason)
	case RevertOrderStatus:
		return fmt.Sprintf("execution reverted: %s(%s, %s)", e.Kind, e.OrderHash.Hex(), e.Status)
	case RevertUnknown:
		return fmt.Sprintf("execution reverted: %x", e.Data)
	default:
		return fmt.Sprintf("execution reverted: %s(code %d, %s)", e.Kind, e.Code, e.OrderHash.Hex())
	}
}

func (e *RevertError) Is(target error) bool {
	return target == ErrReverted
}

type revertSignature struct {
	kind     RevertKind
	selector []byte
	args     abi.Arguments
}

func newRevertSignature(kind RevertKind, signature string, types ...string) revertSignature {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic("invalid revert argument type " + t + ": " + err.Error())
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return revertSignature{
		kind:     kind,
		selector: crypto.Keccak256([]byte(signature))[:4],
		args:     args,
	}
}

var revertSignatures = []revertSignature{
	newRevertSignature(RevertString, "Error(string)", "string"),
	newRevertSignature(RevertOrderStatus, "OrderStatusError(bytes32,uint8)", "bytes32", "uint8"),
	newRevertSignature(RevertInvalidContext, "ExchangeInvalidContextError(uint8,bytes32,address)", "uint8", "bytes32", "address"),
	newRevertSignature(RevertFill, "FillError(uint8,bytes32)", "uint8", "bytes32"),
	newRevertSignature(RevertAssetProxyDispatch, "AssetProxyDispatchError(uint8,bytes32,bytes)", "uint8", "bytes32", "bytes"),
	newRevertSignature(RevertAssetProxyTransfer, "AssetProxyTransferError(bytes32,bytes,bytes)", "bytes32", "bytes", "bytes"),
	newRevertSignature(RevertSignature, "SignatureError(uint8,bytes32,address,bytes)", "uint8", "bytes32", "address", "bytes"),
}

// DecodeRevert classifies raw revert data. Unrecognised data yields a
// RevertUnknown error rather than failing.
func DecodeRevert(data []byte) *RevertError {
	out := &RevertError{Kind: RevertUnknown, Data: common.CopyBytes(data)}
	if len(data) < 4 {
		return out
	}
	for _, sig := range revertSignatures {
		if !bytes.Equal(data[:4], sig.selector) {
			continue
		}
		values, err := sig.args.Unpack(data[4:])
		if err != nil {
			return out
		}
		out.Kind = sig.kind
		switch sig.kind {
		case RevertString:
			out.Reason, _ = values[0].(string)
		case RevertOrderStatus:
			out.OrderHash = common.Hash(values[0].([32]byte))
			out.Status = OrderStatus(values[1].(uint8))
		case RevertInvalidContext, RevertFill, RevertAssetProxyDispatch, RevertSignature:
			out.Code = values[0].(uint8)
			out.OrderHash = common.Hash(values[1].([32]byte))
		case RevertAssetProxyTransfer:
			out.OrderHash = common.Hash(values[0].([32]byte))
		}
		return out
	}
	return out
}

// EncodeRevert builds revert data for kind; used to fake node responses
func EncodeRevert(kind RevertKind, values ...interface{}) ([]byte, error) {
	for _, sig := range revertSignatures {
		if sig.kind != kind {
			continue
		}
		packed, err := sig.args.Pack(values...)
		if err != nil {
			return nil, err
		}
		return append(common.CopyBytes(sig.selector), packed...), nil
	}
	return nil, fmt.Errorf("no revert signature for %s", kind)
}

// revertFromError extracts revert data from a JSON-RPC error, if it carries any
func revertFromError(err error) (*RevertError, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok {
		return nil, false
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return nil, false
	}
	return DecodeRevert(data), true
}
