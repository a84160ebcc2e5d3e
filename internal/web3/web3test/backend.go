// Package web3test provides an in-memory backend that records every RPC the
// token bindings issue, so tests can assert on call sequences without a node.
package web3test

import (
	"context"
	"errors"
	"math/big"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"tokenkit/internal/web3"
)

// Method names recorded by Backend.
const (
	MethodCallContract    = "CallContract"
	MethodCodeAt          = "CodeAt"
	MethodEstimateGas     = "EstimateGas"
	MethodSuggestGasPrice = "SuggestGasPrice"
	MethodSendTransaction = "SendTransaction"
	MethodPendingNonceAt  = "PendingNonceAt"
	MethodReceipt         = "TransactionReceipt"
	MethodChainID         = "ChainID"
	MethodHeaderByNumber  = "HeaderByNumber"
	MethodDial            = "Dial"
)

// Backend is a fake web3.Backend. Mined transactions get a successful receipt
// immediately; contract creations get CreateAddress(sender, nonce).
type Backend struct {
	ChainIDValue *big.Int
	GasPrice     *big.Int
	GasEstimate  uint64
	Code         []byte

	// Responder answers eth_call; nil returns an empty result.
	Responder func(call gethcore.CallMsg) ([]byte, error)

	GasPriceErr error
	EstimateErr error
	SendErr     error

	// Pending leaves every transaction unmined.
	Pending bool

	mu       sync.Mutex
	dialed   []string
	calls    []string
	sent     []*types.Transaction
	estimate []gethcore.CallMsg
	nonces   map[common.Address]uint64
}

// NewBackend returns a backend for chain id 1337 with fixed gas figures.
func NewBackend() *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(1337),
		GasPrice:     big.NewInt(30_000_000_000),
		GasEstimate:  210_000,
		Code:         []byte{0x60, 0x00},
		nonces:       make(map[common.Address]uint64),
	}
}

// Dial satisfies provider.Dialer, handing out this backend for every chain.
func (b *Backend) Dial(_ context.Context, chain string, def web3.ChainDefinition) (web3.Backend, error) {
	b.record(MethodDial)
	b.mu.Lock()
	b.dialed = append(b.dialed, def.RPCURL)
	b.mu.Unlock()
	return b, nil
}

// Dialed returns the RPC URLs passed to Dial in order.
func (b *Backend) Dialed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.dialed))
	copy(out, b.dialed)
	return out
}

// GenerateKeyHex returns a fresh private key in hex and its address.
func GenerateKeyHex() (string, common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", common.Address{}, err
	}
	return hexutil.Encode(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey), nil
}

func (b *Backend) record(method string) {
	b.mu.Lock()
	b.calls = append(b.calls, method)
	b.mu.Unlock()
}

// Calls returns the recorded method names in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

// Count returns how many times method was invoked.
func (b *Backend) Count(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, call := range b.calls {
		if call == method {
			n++
		}
	}
	return n
}

// Sent returns the submitted transactions.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// Estimates returns the messages passed to EstimateGas.
func (b *Backend) Estimates() []gethcore.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]gethcore.CallMsg, len(b.estimate))
	copy(out, b.estimate)
	return out
}

func (b *Backend) CodeAt(_ context.Context, _ common.Address, _ *big.Int) ([]byte, error) {
	b.record(MethodCodeAt)
	return b.Code, nil
}

func (b *Backend) CallContract(_ context.Context, call gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	b.record(MethodCallContract)
	if b.Responder == nil {
		return nil, nil
	}
	return b.Responder(call)
}

func (b *Backend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	b.record(MethodHeaderByNumber)
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: big.NewInt(int64(len(b.sent)))}, nil
}

func (b *Backend) PendingCodeAt(_ context.Context, _ common.Address) ([]byte, error) {
	return b.Code, nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.record(MethodPendingNonceAt)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.record(MethodSuggestGasPrice)
	if b.GasPriceErr != nil {
		return nil, b.GasPriceErr
	}
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(_ context.Context, call gethcore.CallMsg) (uint64, error) {
	b.record(MethodEstimateGas)
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	b.mu.Lock()
	b.estimate = append(b.estimate, call)
	b.mu.Unlock()
	return b.GasEstimate, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.record(MethodSendTransaction)
	if b.SendErr != nil {
		return b.SendErr
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nonces == nil {
		b.nonces = make(map[common.Address]uint64)
	}
	b.nonces[sender] = tx.Nonce() + 1
	b.sent = append(b.sent, tx)
	return nil
}

func (b *Backend) FilterLogs(context.Context, gethcore.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, _ gethcore.FilterQuery, _ chan<- types.Log) (gethcore.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
		case <-ctx.Done():
		}
		return nil
	}), nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.record(MethodReceipt)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Pending {
		return nil, gethcore.NotFound
	}
	for i, tx := range b.sent {
		if tx.Hash() != hash {
			continue
		}
		receipt := &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      hash,
			GasUsed:     tx.Gas(),
			BlockNumber: big.NewInt(int64(i + 1)),
		}
		if tx.To() == nil {
			sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				return nil, err
			}
			receipt.ContractAddress = crypto.CreateAddress(sender, tx.Nonce())
		}
		return receipt, nil
	}
	return nil, gethcore.NotFound
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	b.record(MethodChainID)
	if b.ChainIDValue == nil {
		return nil, errors.New("chain id unavailable")
	}
	return new(big.Int).Set(b.ChainIDValue), nil
}
