package erc20

import (
	"bytes"
	"context"
	"log/slog"

	"tokenkit/internal/web3"
	"tokenkit/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// Deployer creates token contracts from a build artifact.
type Deployer struct {
	chains   ChainRegistry
	artifact *Artifact
	log      *slog.Logger
}

// NewDeployer returns a deployer for artifact.
func NewDeployer(chains ChainRegistry, artifact *Artifact) *Deployer {
	return &Deployer{chains: chains, artifact: artifact, log: logger.Named("deployer")}
}

// Deploy submits the creation transaction for desc, waits until the contract
// code is on chain and returns its address. Node errors are returned as-is.
func (d *Deployer) Deploy(ctx context.Context, desc Descriptor) (web3.DeploymentResult, error) {
	if err := desc.Validate(); err != nil {
		return web3.DeploymentResult{}, err
	}

	signer, err := d.chains.Signer(ctx, desc.ChainID)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	defer signer.Close()
	conn, err := d.chains.Connection(ctx, desc.ChainID)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	defer conn.Close()

	args := []any{desc.Name, desc.Symbol, desc.Decimals, desc.InitialSupply}
	packed, err := d.artifact.ABI.Pack("", args...)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	data := append(bytes.Clone(d.artifact.Bytecode), packed...)

	gasLimit, err := signer.Connection().EstimateGas(ctx, gethcore.CallMsg{From: signer.Address(), Data: data})
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	gasPrice, err := conn.SuggestGasPrice(ctx)
	if err != nil {
		return web3.DeploymentResult{}, err
	}

	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	opts.GasLimit = gasLimit
	opts.GasPrice = gasPrice

	_, tx, _, err := bind.DeployContract(opts, d.artifact.ABI, d.artifact.Bytecode, signer.Connection(), args...)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	d.log.Info("deployment submitted",
		slog.String("contract", d.artifact.ContractName),
		slog.String("chain", desc.ChainID),
		slog.String("tx", tx.Hash().Hex()),
		slog.Uint64("gas_limit", gasLimit),
		slog.String("gas_price", gasPrice.String()),
	)

	address, err := bind.WaitDeployed(ctx, signer.Connection(), tx)
	if err != nil {
		return web3.DeploymentResult{}, err
	}
	return web3.DeploymentResult{ContractAddress: address, Transaction: tx}, nil
}
