package simulator

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/exchange-fillsim-go/assetdata"
	"github.com/kaifufi/exchange-fillsim-go/assets"
	"github.com/kaifufi/exchange-fillsim-go/chain"
)

// Fill failures
var (
	ErrOrderUnfillable    = errors.New("order unfillable")
	ErrInvalidSender      = errors.New("invalid sender")
	ErrInvalidTaker       = errors.New("invalid taker")
	ErrInvalidMakerAmount = errors.New("invalid maker asset amount")
	ErrInvalidTakerAmount = errors.New("invalid taker asset fill amount")
	ErrInvalidFillPrice   = errors.New("invalid fill price")
	ErrTransferFailed     = errors.New("transfer failed")
)

// ErrorKind classifies why a fill or a state mutation failed
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnknown
	KindDecode
	KindInvalidAllowance
	KindCannotMintUniqueUnit
	KindOrderUnfillable
	KindInvalidSender
	KindInvalidTaker
	KindInvalidMakerAmount
	KindInvalidTakerAmount
	KindInvalidFillPrice
	KindTransferFailed
)

var kindNames = map[ErrorKind]string{
	KindNone:                 "None",
	KindUnknown:              "Unknown",
	KindDecode:               "Decode",
	KindInvalidAllowance:     "InvalidAllowance",
	KindCannotMintUniqueUnit: "CannotMintUniqueUnit",
	KindOrderUnfillable:      "OrderUnfillable",
	KindInvalidSender:        "InvalidSender",
	KindInvalidTaker:         "InvalidTaker",
	KindInvalidMakerAmount:   "InvalidMakerAmount",
	KindInvalidTakerAmount:   "InvalidTakerAmount",
	KindInvalidFillPrice:     "InvalidFillPrice",
	KindTransferFailed:       "TransferFailed",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var kindSentinels = map[ErrorKind]error{
	KindDecode:               assetdata.ErrDecode,
	KindInvalidAllowance:     assets.ErrInvalidAllowance,
	KindCannotMintUniqueUnit: assets.ErrCannotMintUniqueUnit,
	KindOrderUnfillable:      ErrOrderUnfillable,
	KindInvalidSender:        ErrInvalidSender,
	KindInvalidTaker:         ErrInvalidTaker,
	KindInvalidMakerAmount:   ErrInvalidMakerAmount,
	KindInvalidTakerAmount:   ErrInvalidTakerAmount,
	KindInvalidFillPrice:     ErrInvalidFillPrice,
	KindTransferFailed:       ErrTransferFailed,
}

// FillError is returned by failed fills
type FillError struct {
	Kind      ErrorKind
	OrderHash common.Hash
	Err       error
}

func (e *FillError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fill %s: %s", e.OrderHash.Hex(), kindSentinels[e.Kind])
	}
	return fmt.Sprintf("fill %s: %v", e.OrderHash.Hex(), e.Err)
}

func (e *FillError) Unwrap() error {
	return e.Err
}

func (e *FillError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

func newFillError(kind ErrorKind, hash common.Hash, err error) *FillError {
	if err == nil {
		err = kindSentinels[kind]
	} else if sentinel, ok := kindSentinels[kind]; ok && !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return &FillError{Kind: kind, OrderHash: hash, Err: err}
}

// KindOf classifies any error produced by a fill, the asset layer or the
// codec. Nil classifies as KindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var fillErr *FillError
	if errors.As(err, &fillErr) {
		return fillErr.Kind
	}
	var revert *chain.RevertError
	if errors.As(err, &revert) {
		return KindFromRevert(revert)
	}
	for _, kind := range []ErrorKind{KindDecode, KindInvalidAllowance, KindCannotMintUniqueUnit} {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return KindUnknown
}

// KindFromRevert maps an exchange revert to the failure the simulator reports
// for the same fill
func KindFromRevert(revert *chain.RevertError) ErrorKind {
	switch revert.Kind {
	case chain.RevertOrderStatus:
		if revert.Status == chain.OrderStatusInvalidMakerAssetAmount {
			return KindInvalidMakerAmount
		}
		return KindOrderUnfillable
	case chain.RevertInvalidContext:
		switch revert.Code {
		case chain.ContextInvalidTaker:
			return KindInvalidTaker
		case chain.ContextInvalidSender:
			return KindInvalidSender
		}
	case chain.RevertFill:
		switch revert.Code {
		case chain.FillErrorInvalidMakerAmount:
			return KindInvalidMakerAmount
		case chain.FillErrorInvalidTakerAmount:
			return KindInvalidTakerAmount
		case chain.FillErrorInvalidFillPrice:
			return KindInvalidFillPrice
		}
	case chain.RevertAssetProxyDispatch:
		return KindDecode
	case chain.RevertAssetProxyTransfer, chain.RevertString:
		return KindTransferFailed
	}
	return KindUnknown
}
