package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LiquidityLogs is what a deposit receipt says the pair received and minted.
type LiquidityLogs struct {
	Amount0   *big.Int
	Amount1   *big.Int
	Liquidity *big.Int
}

// DecodeLiquidityLogs reads the pair's Mint event and the LP-share Transfer to
// recipient out of a deposit receipt. Mint amounts are in pair order
// (token0, token1), i.e. sorted by address.
func DecodeLiquidityLogs(logs []*types.Log, pair, recipient common.Address) (LiquidityLogs, error) {
	mintID := Pair.Events["Mint"].ID
	transferID := Pair.Events["Transfer"].ID

	var (
		out       LiquidityLogs
		foundMint bool
	)
	for _, lg := range logs {
		if lg.Address != pair || len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case mintID:
			values, err := Pair.Unpack("Mint", lg.Data)
			if err != nil {
				return out, fmt.Errorf("unpack Mint: %w", err)
			}
			if len(values) != 2 {
				return out, fmt.Errorf("unexpected Mint payload: %d values", len(values))
			}
			out.Amount0, _ = values[0].(*big.Int)
			out.Amount1, _ = values[1].(*big.Int)
			foundMint = true
		case transferID:
			if len(lg.Topics) != 3 {
				continue
			}
			from := common.BytesToAddress(lg.Topics[1].Bytes())
			to := common.BytesToAddress(lg.Topics[2].Bytes())
			if from != (common.Address{}) || to != recipient {
				continue
			}
			values, err := Pair.Unpack("Transfer", lg.Data)
			if err != nil {
				return out, fmt.Errorf("unpack LP Transfer: %w", err)
			}
			if len(values) == 1 {
				if v, ok := values[0].(*big.Int); ok {
					out.Liquidity = v
				}
			}
		}
	}
	if !foundMint {
		return out, fmt.Errorf("no Mint event from pair %s in receipt", pair.Hex())
	}
	if out.Liquidity == nil {
		out.Liquidity = new(big.Int)
	}
	return out, nil
}

// Split maps pair-ordered amounts to (token, other side) given the pair's token0.
func (l LiquidityLogs) Split(token0, token common.Address) (tokenAmount, otherAmount *big.Int) {
	if token == token0 {
		return l.Amount0, l.Amount1
	}
	return l.Amount1, l.Amount0
}

// TokenRecordTuple mirrors one getTokens tuple, field for field.
type TokenRecordTuple struct {
	TokenAddress common.Address
	Name         string
	Symbol       string
	InitiatorFid *big.Int
	ImageUrl     string
	Creator      common.Address
}

// UnpackTokenRecords decodes the return data of getTokens.
func UnpackTokenRecords(data []byte) ([]TokenRecordTuple, error) {
	values, err := LaunchFactory.Unpack("getTokens", data)
	if err != nil {
		return nil, fmt.Errorf("unpack getTokens: %w", err)
	}
	var records []TokenRecordTuple
	if err := LaunchFactory.Methods["getTokens"].Outputs.Copy(&records, values); err != nil {
		return nil, fmt.Errorf("copy getTokens: %w", err)
	}
	return records, nil
}
