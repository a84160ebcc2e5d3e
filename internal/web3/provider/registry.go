package provider

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/ethereum"
	"tokenkit/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Dialer opens a connection handle for a chain definition.
type Dialer func(ctx context.Context, chain string, def web3.ChainDefinition) (web3.Backend, error)

// Registry maps chain identifiers to their endpoint and signing credential.
// It is immutable after construction and hands out a fresh handle on every
// call.
type Registry struct {
	chains map[string]web3.ChainDefinition
	dial   Dialer
	log    *slog.Logger
}

// Option customises the registry.
type Option func(*Registry)

// WithDialer replaces the default JSON-RPC dialer.
func WithDialer(dial Dialer) Option {
	return func(r *Registry) {
		if dial != nil {
			r.dial = dial
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry builds a registry from loaded chain definitions.
func NewRegistry(defs web3.ChainDefinitions, opts ...Option) (*Registry, error) {
	if len(defs.Chains) == 0 {
		return nil, apperrors.New(apperrors.CodeInitializationFailure, "no chains configured")
	}
	chains := make(map[string]web3.ChainDefinition, len(defs.Chains))
	for name, def := range defs.Chains {
		chains[strings.TrimSpace(name)] = def
	}

	r := &Registry{
		chains: chains,
		dial:   dialEthereum,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.log == nil {
		r.log = logger.Named("registry")
	}
	return r, nil
}

func dialEthereum(ctx context.Context, chain string, def web3.ChainDefinition) (web3.Backend, error) {
	client, err := ethereum.Dial(ctx, ethereum.Config{Name: chain, RPCURL: def.RPCURL})
	if err != nil {
		return nil, err
	}
	logger.Named("ethereum").Debug("rpc client dialed",
		slog.String("chain", client.Name()),
		slog.String("endpoint", client.Endpoint()),
	)
	return client, nil
}

// Definition returns the configuration entry for chain.
func (r *Registry) Definition(chain string) (web3.ChainDefinition, error) {
	if r == nil {
		return web3.ChainDefinition{}, apperrors.New(apperrors.CodeInitializationFailure, "chain registry not initialized")
	}
	def, ok := r.chains[chain]
	if !ok {
		return web3.ChainDefinition{}, notFound(chain)
	}
	return def, nil
}

// Connection dials a new handle scoped to the chain's RPC endpoint.
func (r *Registry) Connection(ctx context.Context, chain string) (*Connection, error) {
	def, err := r.Definition(chain)
	if err != nil {
		return nil, err
	}
	backend, err := r.dial(ctx, chain, def)
	if err != nil {
		return nil, err
	}
	r.log.Debug("connection opened", slog.String("chain", chain))
	return &Connection{Backend: backend, chain: chain, endpoint: def.RPCURL}, nil
}

// Signer composes a signing handle from the chain's credential and a new
// connection handle.
func (r *Registry) Signer(ctx context.Context, chain string) (*Signer, error) {
	def, err := r.Definition(chain)
	if err != nil {
		return nil, err
	}
	key, err := parseKey(chain, def.Credential())
	if err != nil {
		return nil, err
	}
	conn, err := r.Connection(ctx, chain)
	if err != nil {
		return nil, err
	}
	return &Signer{
		conn:    conn,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: def.NumericChainID(chain),
	}, nil
}

// Chains returns the configured chain identifiers.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func notFound(chain string) error {
	return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("chain %s not found", chain),
		apperrors.WithMetadata("chain", chain))
}

func parseKey(chain, credential string) (*ecdsa.PrivateKey, error) {
	credential = strings.TrimPrefix(strings.TrimSpace(credential), "0x")
	if credential == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("chain %s has no signing credential", chain),
			apperrors.WithMetadata("chain", chain))
	}
	key, err := crypto.HexToECDSA(credential)
	if err != nil {
		// The cause is dropped so the key never reaches logs.
		return nil, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("chain %s signing credential is not a valid private key", chain),
			apperrors.WithMetadata("chain", chain))
	}
	return key, nil
}

// Connection is a handle on a single chain's RPC endpoint.
type Connection struct {
	web3.Backend
	chain    string
	endpoint string
}

// Chain returns the identifier the connection was opened for.
func (c *Connection) Chain() string { return c.chain }

// Endpoint returns the configured RPC URL.
func (c *Connection) Endpoint() string { return c.endpoint }

// Snapshot fetches the chain id and head block number.
func (c *Connection) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	head, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	return web3.ChainSnapshot{
		Chain:       c.chain,
		ChainID:     chainID.String(),
		BlockNumber: head.Number.String(),
		Endpoint:    c.endpoint,
	}, nil
}

// Close releases the underlying transport when it holds one.
func (c *Connection) Close() {
	if c == nil || c.Backend == nil {
		return
	}
	if closer, ok := c.Backend.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Signer binds a private key to a connection handle.
type Signer struct {
	conn    *Connection
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// Address returns the signing account.
func (s *Signer) Address() common.Address { return s.address }

// Connection returns the handle the signer submits through.
func (s *Signer) Connection() *Connection { return s.conn }

// ChainID returns the configured EIP-155 chain id, asking the node when the
// configuration does not carry one.
func (s *Signer) ChainID(ctx context.Context) (*big.Int, error) {
	if s.chainID != nil {
		return new(big.Int).Set(s.chainID), nil
	}
	return s.conn.ChainID(ctx)
}

// TransactOpts returns keyed transact options bound to ctx.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// Close releases the signer's connection.
func (s *Signer) Close() {
	if s != nil {
		s.conn.Close()
	}
}
