package erc20

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"testing"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/provider"
	"tokenkit/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// simpleContractBin copies a 39 byte runtime that emits one log. Constructor
// arguments appended to it are ignored.
const simpleContractBin = "0x6027600c60003960276000f37f0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f2060006000a100"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func testArtifact() *Artifact {
	return &Artifact{ContractName: "MyToken", ABI: DefaultABI(), Bytecode: common.FromHex(simpleContractBin)}
}

func myToken(chain string) Descriptor {
	return Descriptor{
		Name:          "MyToken",
		Symbol:        "MTK",
		Decimals:      18,
		InitialSupply: tokenUnits(1000),
		ChainID:       chain,
	}
}

func TestDeployerDeploy(t *testing.T) {
	backend := web3test.NewBackend()
	registry := newRegistry(t, backend)
	deployer := NewDeployer(registry, testArtifact())

	result, err := deployer.Deploy(context.Background(), myToken("137"))
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !addressPattern.MatchString(result.ContractAddress.Hex()) {
		t.Fatalf("invalid contract address %s", result.ContractAddress.Hex())
	}

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(137)), result.Transaction)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if result.ContractAddress != crypto.CreateAddress(sender, result.Transaction.Nonce()) {
		t.Fatalf("unexpected contract address %s", result.ContractAddress.Hex())
	}

	if backend.Count(web3test.MethodEstimateGas) != 1 || backend.Count(web3test.MethodSuggestGasPrice) != 1 {
		t.Fatalf("expected one estimate and one gas price fetch, got %v", backend.Calls())
	}
	if backend.Count(web3test.MethodSendTransaction) != 1 {
		t.Fatalf("expected one creation transaction, got %d", backend.Count(web3test.MethodSendTransaction))
	}
	if result.Transaction.To() != nil {
		t.Fatal("expected contract creation transaction")
	}
	if result.Transaction.Gas() != backend.GasEstimate || result.Transaction.GasPrice().Cmp(backend.GasPrice) != 0 {
		t.Fatalf("unexpected gas parameters %d %s", result.Transaction.Gas(), result.Transaction.GasPrice())
	}

	packed, err := DefaultABI().Pack("", "MyToken", "MTK", uint8(18), tokenUnits(1000))
	if err != nil {
		t.Fatalf("pack constructor: %v", err)
	}
	want := append(common.FromHex(simpleContractBin), packed...)
	if string(result.Transaction.Data()) != string(want) {
		t.Fatal("creation data does not carry the constructor arguments")
	}
	if string(backend.Estimates()[0].Data) != string(want) {
		t.Fatal("gas estimate was not computed for the creation transaction")
	}
}

func TestDeployerValidatesDescriptor(t *testing.T) {
	backend := web3test.NewBackend()
	deployer := NewDeployer(newRegistry(t, backend), testArtifact())

	desc := myToken("137")
	desc.Symbol = ""
	_, err := deployer.Deploy(context.Background(), desc)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("invalid descriptors must not reach the chain, got %v", backend.Calls())
	}
}

func TestDeployerUnknownChain(t *testing.T) {
	deployer := NewDeployer(newRegistry(t, web3test.NewBackend()), testArtifact())
	if _, err := deployer.Deploy(context.Background(), myToken("56")); !apperrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeployerPropagatesSubmissionError(t *testing.T) {
	sendErr := errors.New("insufficient funds for gas * price + value")
	backend := web3test.NewBackend()
	backend.SendErr = sendErr
	deployer := NewDeployer(newRegistry(t, backend), testArtifact())

	if _, err := deployer.Deploy(context.Background(), myToken("137")); err != sendErr {
		t.Fatalf("expected unmodified send error, got %v", err)
	}
	if backend.Count(web3test.MethodReceipt) != 0 {
		t.Fatal("failed submissions must not wait for a receipt")
	}
}

type committingClient struct {
	simulated.Client
	sim *simulated.Backend
}

func (c committingClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.sim.Commit()
	return nil
}

func TestDeployerOnSimulatedChain(t *testing.T) {
	keyHex, from, err := web3test.GenerateKeyHex()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sim := simulated.NewBackend(types.GenesisAlloc{
		from: {Balance: tokenUnits(100)},
	})
	t.Cleanup(func() { _ = sim.Close() })

	registry, err := provider.NewRegistry(web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"local": {RPCURL: "simulated://", Wallet: keyHex, ChainID: 1337},
	}}, provider.WithDialer(func(context.Context, string, web3.ChainDefinition) (web3.Backend, error) {
		return committingClient{Client: sim.Client(), sim: sim}, nil
	}))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	result, err := NewDeployer(registry, testArtifact()).Deploy(context.Background(), myToken("local"))
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	code, err := sim.Client().CodeAt(context.Background(), result.ContractAddress, nil)
	if err != nil {
		t.Fatalf("code at: %v", err)
	}
	if len(code) != 0x27 {
		t.Fatalf("expected deployed runtime of 39 bytes, got %d", len(code))
	}
	if result.ContractAddress != crypto.CreateAddress(from, 0) {
		t.Fatalf("unexpected address %s", result.ContractAddress.Hex())
	}
}
