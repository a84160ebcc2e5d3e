package provider

import (
	"context"
	"errors"
	"testing"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/web3test"
)

func newTestRegistry(t *testing.T, backend *web3test.Backend) (*Registry, string) {
	t.Helper()

	keyHex, _, err := web3test.GenerateKeyHex()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	defs := web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"137":   {RPCURL: "https://polygon.example/rpc", Wallet: keyHex},
		"local": {RPCURL: "http://127.0.0.1:8545", Wallet: keyHex},
		"nokey": {RPCURL: "http://127.0.0.1:9545"},
	}}
	registry, err := NewRegistry(defs, WithDialer(backend.Dial))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry, keyHex
}

func TestRegistryConnectionBindsConfiguredEndpoint(t *testing.T) {
	backend := web3test.NewBackend()
	registry, _ := newTestRegistry(t, backend)
	ctx := context.Background()

	conn, err := registry.Connection(ctx, "137")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	if conn.Chain() != "137" || conn.Endpoint() != "https://polygon.example/rpc" {
		t.Fatalf("unexpected connection %s %s", conn.Chain(), conn.Endpoint())
	}

	if _, err := registry.Connection(ctx, "137"); err != nil {
		t.Fatalf("second connection: %v", err)
	}
	if got := backend.Count(web3test.MethodDial); got != 2 {
		t.Fatalf("expected a new handle per call, got %d dials", got)
	}
}

func TestRegistrySignerUsesConfiguredCredential(t *testing.T) {
	backend := web3test.NewBackend()
	keyHex, address, err := web3test.GenerateKeyHex()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	registry, err := NewRegistry(web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"137": {RPCURL: "https://polygon.example/rpc", Wallet: keyHex},
	}}, WithDialer(backend.Dial))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	ctx := context.Background()
	signer, err := registry.Signer(ctx, "137")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if signer.Address() != address {
		t.Fatalf("expected signer %s, got %s", address.Hex(), signer.Address().Hex())
	}
	if signer.Connection().Endpoint() != "https://polygon.example/rpc" {
		t.Fatalf("signer bound to wrong endpoint %s", signer.Connection().Endpoint())
	}

	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		t.Fatalf("transact opts: %v", err)
	}
	if opts.From != address {
		t.Fatalf("unexpected transactor %s", opts.From.Hex())
	}
	chainID, err := signer.ChainID(ctx)
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if chainID.Int64() != 137 {
		t.Fatalf("expected chain id from identifier, got %s", chainID)
	}
	if backend.Count(web3test.MethodChainID) != 0 {
		t.Fatal("numeric identifier should not query the node")
	}
}

func TestRegistrySignerQueriesChainIDForNamedChains(t *testing.T) {
	backend := web3test.NewBackend()
	registry, _ := newTestRegistry(t, backend)

	signer, err := registry.Signer(context.Background(), "local")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	chainID, err := signer.ChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if chainID.Int64() != 1337 {
		t.Fatalf("expected node chain id, got %s", chainID)
	}
}

func TestRegistryUnknownChainFailsWithSameError(t *testing.T) {
	backend := web3test.NewBackend()
	registry, _ := newTestRegistry(t, backend)
	ctx := context.Background()

	_, connErr := registry.Connection(ctx, "1")
	_, signerErr := registry.Signer(ctx, "1")

	for _, err := range []error{connErr, signerErr} {
		if !apperrors.IsNotFound(err) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	}
	if connErr.Error() != signerErr.Error() {
		t.Fatalf("expected identical errors, got %q and %q", connErr, signerErr)
	}
	if backend.Count(web3test.MethodDial) != 0 {
		t.Fatal("unknown chains must not dial")
	}
}

func TestRegistrySignerRejectsMissingCredential(t *testing.T) {
	backend := web3test.NewBackend()
	registry, _ := newTestRegistry(t, backend)

	_, err := registry.Signer(context.Background(), "nokey")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestRegistrySignerRejectsMalformedKey(t *testing.T) {
	registry, err := NewRegistry(web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"137": {RPCURL: "http://node", Wallet: "0xnot-a-key"},
	}}, WithDialer(web3test.NewBackend().Dial))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	_, err = registry.Signer(context.Background(), "137")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestRegistryPropagatesDialError(t *testing.T) {
	dialErr := errors.New("dial refused")
	registry, err := NewRegistry(web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"137": {RPCURL: "http://node"},
	}}, WithDialer(func(context.Context, string, web3.ChainDefinition) (web3.Backend, error) {
		return nil, dialErr
	}))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := registry.Connection(context.Background(), "137"); err != dialErr {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestRegistryChainsSortedAndEmptyRejected(t *testing.T) {
	registry, _ := newTestRegistry(t, web3test.NewBackend())
	chains := registry.Chains()
	if len(chains) != 3 || chains[0] != "137" || chains[1] != "local" || chains[2] != "nokey" {
		t.Fatalf("unexpected chains %v", chains)
	}

	if _, err := NewRegistry(web3.ChainDefinitions{}); apperrors.CodeOf(err) != apperrors.CodeInitializationFailure {
		t.Fatalf("expected INITIALIZATION_FAILURE, got %v", err)
	}
}

func TestConnectionSnapshot(t *testing.T) {
	registry, _ := newTestRegistry(t, web3test.NewBackend())
	conn, err := registry.Connection(context.Background(), "local")
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	snapshot, err := conn.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.ChainID != "1337" || snapshot.Chain != "local" || snapshot.BlockNumber != "0" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}
