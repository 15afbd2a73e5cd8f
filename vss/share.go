package vss

import (
	"encoding/json"
	"fmt"

	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Share is one player's slice of the secret: the sharing polynomial
// evaluated at the player's index, reduced modulo q. Indices start at 1;
// index zero would evaluate to the secret itself and never occurs.
//
// A share is confidential. Only the commitments derived from the same
// polynomial are public.
type Share struct {
	Index int
	Value *big.Int
}

type shareJSON struct {
	Index int          `json:"index"`
	Value *hexutil.Big `json:"value"`
}

// MarshalJSON encodes the share with a canonical hexadecimal value.
func (s Share) MarshalJSON() ([]byte, error) {
	return json.Marshal(shareJSON{Index: s.Index, Value: (*hexutil.Big)(s.Value)})
}

// UnmarshalJSON decodes a share, requiring both index and value.
func (s *Share) UnmarshalJSON(data []byte) error {
	var enc shareJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	if enc.Value == nil {
		return fmt.Errorf("%w: share value is required", ErrInvalidInput)
	}
	s.Index = enc.Index
	s.Value = (*big.Int)(enc.Value)
	return nil
}
