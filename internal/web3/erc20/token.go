package erc20

import (
	"context"
	"errors"
	"math/big"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/web3/provider"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrEmptyResult is returned when a call decodes to no values.
var ErrEmptyResult = errors.New("contract call returned no values")

// ChainRegistry hands out connection and signing handles by chain identifier.
type ChainRegistry interface {
	Connection(ctx context.Context, chain string) (*provider.Connection, error)
	Signer(ctx context.Context, chain string) (*provider.Signer, error)
}

// Token is a client for a deployed ERC20 contract. Errors from the node are
// returned as-is.
type Token struct {
	chains   ChainRegistry
	chain    string
	address  common.Address
	abi      abi.ABI
	signer   *provider.Signer
	contract *bind.BoundContract
}

// NewToken binds the contract at address on chain, signing with the chain's
// configured credential.
func NewToken(ctx context.Context, chains ChainRegistry, chain string, address common.Address, contractABI abi.ABI) (*Token, error) {
	signer, err := chains.Signer(ctx, chain)
	if err != nil {
		return nil, err
	}
	backend := signer.Connection()
	return &Token{
		chains:   chains,
		chain:    chain,
		address:  address,
		abi:      contractABI,
		signer:   signer,
		contract: bind.NewBoundContract(address, contractABI, backend, backend, backend),
	}, nil
}

// Address returns the contract address.
func (t *Token) Address() common.Address { return t.address }

// Chain returns the chain identifier the token lives on.
func (t *Token) Chain() string { return t.chain }

// From returns the account that signs mints.
func (t *Token) From() common.Address { return t.signer.Address() }

// Close releases the signer's connection.
func (t *Token) Close() { t.signer.Close() }

func (t *Token) call(ctx context.Context, method string, args ...any) (any, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx, From: t.signer.Address()}
	if err := t.contract.Call(opts, &out, method, args...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out[0], nil
}

// Name calls name().
func (t *Token) Name(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "name")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out, new(string)).(*string), nil
}

// Symbol calls symbol().
func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out, new(string)).(*string), nil
}

// Decimals calls decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out, new(uint8)).(*uint8), nil
}

// TotalSupply calls totalSupply().
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := t.call(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out, new(*big.Int)).(**big.Int), nil
}

// BalanceOf calls balanceOf(holder).
func (t *Token) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out, new(*big.Int)).(**big.Int), nil
}

// Mint submits mint(to, amount) priced at the current network gas price with
// an estimated gas limit, and returns the pending transaction.
func (t *Token) Mint(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	if amount == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "mint amount is nil")
	}
	conn, err := t.chains.Connection(ctx, t.chain)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	gasPrice, err := conn.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	input, err := t.abi.Pack("mint", to, amount)
	if err != nil {
		return nil, err
	}
	gasLimit, err := t.signer.Connection().EstimateGas(ctx, gethcore.CallMsg{
		From: t.signer.Address(),
		To:   &t.address,
		Data: input,
	})
	if err != nil {
		return nil, err
	}

	opts, err := t.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = gasLimit
	opts.GasPrice = gasPrice
	return t.contract.Transact(opts, "mint", to, amount)
}

// WaitMined blocks until tx has a receipt.
func (t *Token) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, t.signer.Connection(), tx)
}
