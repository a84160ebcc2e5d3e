package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/provider"
	"tokenkit/internal/web3/web3test"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenAddress = common.HexToAddress("0x1aE7800dac4a273b974e1EC483e0B5DE5B9e1710")
	holder       = common.HexToAddress("0xF754D0f4de0e815b391D997Eeec5cD07E59858F0")
)

func tokenUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// respondERC20 answers eth_call with fixed token state.
func respondERC20(t *testing.T) func(gethcore.CallMsg) ([]byte, error) {
	t.Helper()
	parsed := DefaultABI()
	values := map[string][]any{
		"name":        {"MyToken"},
		"symbol":      {"MTK"},
		"decimals":    {uint8(18)},
		"totalSupply": {tokenUnits(1000)},
		"balanceOf":   {tokenUnits(250)},
	}
	return func(call gethcore.CallMsg) ([]byte, error) {
		method, err := parsed.MethodById(call.Data[:4])
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(values[method.Name]...)
	}
}

func newRegistry(t *testing.T, backend *web3test.Backend) *provider.Registry {
	t.Helper()
	keyHex, _, err := web3test.GenerateKeyHex()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	registry, err := provider.NewRegistry(web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"137": {RPCURL: "https://polygon.example/rpc", Wallet: keyHex},
	}}, provider.WithDialer(backend.Dial))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func newTestToken(t *testing.T, backend *web3test.Backend) *Token {
	t.Helper()
	token, err := NewToken(context.Background(), newRegistry(t, backend), "137", tokenAddress, DefaultABI())
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	t.Cleanup(token.Close)
	return token
}

func TestTokenReadAccessors(t *testing.T) {
	backend := web3test.NewBackend()
	backend.Responder = respondERC20(t)
	token := newTestToken(t, backend)
	ctx := context.Background()

	name, err := token.Name(ctx)
	if err != nil || name != "MyToken" {
		t.Fatalf("name = %q, %v", name, err)
	}
	symbol, err := token.Symbol(ctx)
	if err != nil || symbol != "MTK" {
		t.Fatalf("symbol = %q, %v", symbol, err)
	}
	decimals, err := token.Decimals(ctx)
	if err != nil || decimals != 18 {
		t.Fatalf("decimals = %d, %v", decimals, err)
	}
	supply, err := token.TotalSupply(ctx)
	if err != nil || supply.Cmp(tokenUnits(1000)) != 0 {
		t.Fatalf("total supply = %v, %v", supply, err)
	}
	balance, err := token.BalanceOf(ctx, holder)
	if err != nil || balance.Cmp(tokenUnits(250)) != 0 {
		t.Fatalf("balance = %v, %v", balance, err)
	}

	if got := backend.Count(web3test.MethodCallContract); got != 5 {
		t.Fatalf("expected one eth_call per accessor, got %d", got)
	}
	for _, method := range []string{web3test.MethodSendTransaction, web3test.MethodEstimateGas, web3test.MethodSuggestGasPrice} {
		if backend.Count(method) != 0 {
			t.Fatalf("read accessors must not call %s", method)
		}
	}
}

func TestTokenReadPropagatesCallError(t *testing.T) {
	callErr := errors.New("execution reverted")
	backend := web3test.NewBackend()
	backend.Responder = func(gethcore.CallMsg) ([]byte, error) { return nil, callErr }
	token := newTestToken(t, backend)

	if _, err := token.Name(context.Background()); err != callErr {
		t.Fatalf("expected call error, got %v", err)
	}
}

func TestTokenMintSubmitsOneTransaction(t *testing.T) {
	backend := web3test.NewBackend()
	token := newTestToken(t, backend)
	amount := tokenUnits(1000)

	tx, err := token.Mint(context.Background(), holder, amount)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	counts := map[string]int{
		web3test.MethodSuggestGasPrice: 1,
		web3test.MethodEstimateGas:     1,
		web3test.MethodSendTransaction: 1,
	}
	for method, want := range counts {
		if got := backend.Count(method); got != want {
			t.Fatalf("expected %d %s calls, got %d", want, method, got)
		}
	}

	var order []string
	for _, call := range backend.Calls() {
		if _, ok := counts[call]; ok {
			order = append(order, call)
		}
	}
	if order[0] != web3test.MethodSuggestGasPrice || order[1] != web3test.MethodEstimateGas || order[2] != web3test.MethodSendTransaction {
		t.Fatalf("unexpected call order %v", order)
	}

	if tx.Gas() != backend.GasEstimate {
		t.Fatalf("expected gas limit %d, got %d", backend.GasEstimate, tx.Gas())
	}
	if tx.GasPrice().Cmp(backend.GasPrice) != 0 {
		t.Fatalf("expected gas price %s, got %s", backend.GasPrice, tx.GasPrice())
	}
	if tx.To() == nil || *tx.To() != tokenAddress {
		t.Fatalf("unexpected recipient %v", tx.To())
	}
	if tx.ChainId().Int64() != 137 {
		t.Fatalf("expected chain id 137, got %s", tx.ChainId())
	}

	want, err := DefaultABI().Pack("mint", holder, amount)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if string(tx.Data()) != string(want) {
		t.Fatal("transaction data does not encode mint(to, amount)")
	}
	estimate := backend.Estimates()[0]
	if estimate.From != token.From() || string(estimate.Data) != string(want) {
		t.Fatalf("unexpected estimate message %+v", estimate)
	}

	receipt, err := token.WaitMined(context.Background(), tx)
	if err != nil {
		t.Fatalf("wait mined: %v", err)
	}
	if receipt.TxHash != tx.Hash() {
		t.Fatalf("unexpected receipt %s", receipt.TxHash.Hex())
	}
}

func TestTokenMintPropagatesErrorsUnmodified(t *testing.T) {
	gasErr := errors.New("gas price unavailable")
	estimateErr := errors.New("execution reverted: Ownable: caller is not the owner")
	sendErr := errors.New("replacement transaction underpriced")

	cases := []struct {
		name     string
		setup    func(b *web3test.Backend)
		want     error
		sendSeen int
	}{
		{name: "gas price", setup: func(b *web3test.Backend) { b.GasPriceErr = gasErr }, want: gasErr},
		{name: "estimate", setup: func(b *web3test.Backend) { b.EstimateErr = estimateErr }, want: estimateErr},
		{name: "send", setup: func(b *web3test.Backend) { b.SendErr = sendErr }, want: sendErr, sendSeen: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := web3test.NewBackend()
			tc.setup(backend)
			token := newTestToken(t, backend)

			_, err := token.Mint(context.Background(), holder, big.NewInt(1))
			if err != tc.want {
				t.Fatalf("expected unmodified error %v, got %v", tc.want, err)
			}
			if got := backend.Count(web3test.MethodSendTransaction); got != tc.sendSeen {
				t.Fatalf("expected %d submissions, got %d", tc.sendSeen, got)
			}
		})
	}
}

func TestTokenMintRejectsNilAmount(t *testing.T) {
	backend := web3test.NewBackend()
	token := newTestToken(t, backend)

	_, err := token.Mint(context.Background(), holder, nil)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	for _, method := range []string{web3test.MethodSuggestGasPrice, web3test.MethodEstimateGas, web3test.MethodSendTransaction} {
		if got := backend.Count(method); got != 0 {
			t.Fatalf("expected no %s call, got %d", method, got)
		}
	}
}

func TestNewTokenUnknownChain(t *testing.T) {
	backend := web3test.NewBackend()
	_, err := NewToken(context.Background(), newRegistry(t, backend), "1", tokenAddress, DefaultABI())
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
