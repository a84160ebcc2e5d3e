package erc20

import (
	"math/big"
	"strings"

	apperrors "tokenkit/internal/errors"
)

// Descriptor bundles the constructor arguments of a token deployment and the
// chain it targets.
type Descriptor struct {
	Name          string
	Symbol        string
	Decimals      uint8
	InitialSupply *big.Int
	ChainID       string
}

// Validate rejects descriptors the constructor could not accept.
func (d Descriptor) Validate() error {
	switch {
	case strings.TrimSpace(d.ChainID) == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "token descriptor has no chain")
	case strings.TrimSpace(d.Name) == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "token name is empty")
	case strings.TrimSpace(d.Symbol) == "":
		return apperrors.New(apperrors.CodeInvalidArgument, "token symbol is empty")
	case d.InitialSupply == nil || d.InitialSupply.Sign() < 0:
		return apperrors.New(apperrors.CodeInvalidArgument, "initial supply must be zero or positive")
	}
	return nil
}
