package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to reach an EVM compatible JSON-RPC endpoint.
type Config struct {
	Name   string
	RPCURL string
}

// Client is an ethclient bound to a single named endpoint.
type Client struct {
	*ethclient.Client
	name     string
	endpoint string
}

// Dial opens a JSON-RPC client for the configured endpoint. HTTP endpoints are
// connected lazily, so an unreachable node surfaces on the first call.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is empty")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Name, err)
	}
	return &Client{
		Client:   ethclient.NewClient(rpcClient),
		name:     cfg.Name,
		endpoint: rpcURL,
	}, nil
}

// Name returns the chain identifier the client was dialed for.
func (c *Client) Name() string { return c.name }

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string { return c.endpoint }
