package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"text/tabwriter"
	"time"

	"tokenkit/internal/config"
	"tokenkit/internal/token"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/erc20"
	"tokenkit/internal/web3/provider"
	"tokenkit/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

const defaultDecimals = 18

// runner 在命令之间共享已加载的配置。
type runner struct {
	out  io.Writer
	dial provider.Dialer
	cfg  *config.Config
}

func newApp(out io.Writer) *cli.App {
	return buildApp(out, nil)
}

// buildApp 组装命令树；dial 为空时使用 JSON-RPC 拨号。
func buildApp(out io.Writer, dial provider.Dialer) *cli.App {
	r := &runner{out: out, dial: dial}

	chainFlag := &cli.StringFlag{Name: "chain", Aliases: []string{"c"}, Usage: "链标识", Required: true}
	addressFlag := &cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "代币合约地址", Required: true}
	decimalsFlag := &cli.UintFlag{Name: "decimals", Usage: "代币精度", Value: defaultDecimals}
	rawFlag := &cli.BoolFlag{Name: "raw", Usage: "数量按最小单位解释"}

	return &cli.App{
		Name:      "tokenctl",
		Usage:     "部署与管理 ERC20 代币",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "配置文件路径", EnvVars: []string{config.EnvConfigPath}},
		},
		Before: r.loadConfig,
		Commands: []*cli.Command{
			{
				Name:  "chains",
				Usage: "列出已配置的链",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "status", Usage: "连接各链并显示链 ID 与最新区块"},
				},
				Action: r.withEnvironment(true, r.chains),
			},
			{
				Name:  "deploy",
				Usage: "部署新的代币合约",
				Flags: []cli.Flag{
					chainFlag,
					&cli.StringFlag{Name: "name", Usage: "代币名称", Required: true},
					&cli.StringFlag{Name: "symbol", Usage: "代币符号", Required: true},
					decimalsFlag,
					&cli.StringFlag{Name: "supply", Usage: "初始发行量", Value: "0"},
					rawFlag,
				},
				Action: r.withEnvironment(true, r.deploy),
			},
			{
				Name:   "info",
				Usage:  "查询代币名称、符号、精度与总量",
				Flags:  []cli.Flag{chainFlag, addressFlag},
				Action: r.withEnvironment(true, r.info),
			},
			{
				Name:  "balance",
				Usage: "查询账户余额",
				Flags: []cli.Flag{
					chainFlag,
					addressFlag,
					&cli.StringFlag{Name: "holder", Usage: "持有人地址", Required: true},
				},
				Action: r.withEnvironment(true, r.balance),
			},
			{
				Name:  "mint",
				Usage: "向指定地址增发代币",
				Flags: []cli.Flag{
					chainFlag,
					addressFlag,
					&cli.StringFlag{Name: "to", Usage: "接收地址", Required: true},
					&cli.StringFlag{Name: "amount", Usage: "增发数量", Required: true},
					decimalsFlag,
					rawFlag,
					&cli.BoolFlag{Name: "wait", Usage: "等待交易上链"},
				},
				Action: r.withEnvironment(true, r.mint),
			},
			{
				Name:  "history",
				Usage: "查看最近的操作台账",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "最多显示的记录数", Value: 20},
				},
				Action: r.withEnvironment(false, r.history),
			},
		},
	}
}

func (r *runner) loadConfig(c *cli.Context) error {
	cfg, err := config.Load(config.ResolvePath(c.String("config")))
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

func (r *runner) withEnvironment(withChains bool, fn func(*cli.Context, *environment) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := openEnvironment(c.Context, r.cfg, r.dial, withChains)
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(c, env)
	}
}

func (r *runner) chains(c *cli.Context, env *environment) error {
	status := c.Bool("status")
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	if status {
		fmt.Fprintln(w, "CHAIN\tRPC\tCHAIN ID\tBLOCK\tDESCRIPTION")
	} else {
		fmt.Fprintln(w, "CHAIN\tRPC\tDESCRIPTION")
	}
	for _, id := range env.registry.Chains() {
		def, err := env.registry.Definition(id)
		if err != nil {
			return err
		}
		if !status {
			fmt.Fprintf(w, "%s\t%s\t%s\n", id, def.RPCURL, def.Description)
			continue
		}
		chainID, block := "-", "unreachable"
		if snapshot, err := snapshotOf(c.Context, env.registry, id); err != nil {
			logger.L().Warn("查询链状态失败", slog.String("chain", id), slog.Any("error", err))
		} else {
			chainID, block = snapshot.ChainID, snapshot.BlockNumber
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, def.RPCURL, chainID, block, def.Description)
	}
	return w.Flush()
}

func snapshotOf(ctx context.Context, registry *provider.Registry, chain string) (web3.ChainSnapshot, error) {
	conn, err := registry.Connection(ctx, chain)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	defer conn.Close()
	return conn.Snapshot(ctx)
}

func (r *runner) deploy(c *cli.Context, env *environment) error {
	decimals, err := decimalsOf(c)
	if err != nil {
		return err
	}
	supply, err := parseAmount(c.String("supply"), decimals, c.Bool("raw"))
	if err != nil {
		return err
	}

	result, err := env.service.Deploy(c.Context, erc20.Descriptor{
		Name:          c.String("name"),
		Symbol:        c.String("symbol"),
		Decimals:      decimals,
		InitialSupply: supply,
		ChainID:       c.String("chain"),
	})
	if result.Transaction != nil {
		fmt.Fprintf(r.out, "contract: %s\ntx: %s\n", result.ContractAddress.Hex(), result.Transaction.Hash().Hex())
	}
	return err
}

func (r *runner) info(c *cli.Context, env *environment) error {
	contract, err := parseAddress("address", c.String("address"))
	if err != nil {
		return err
	}
	info, err := env.service.Info(c.Context, c.String("chain"), contract)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "name: %s\nsymbol: %s\ndecimals: %d\ntotal supply: %s\n",
		info.Name, info.Symbol, info.Decimals, erc20.FormatUnits(info.TotalSupply, info.Decimals))
	return nil
}

func (r *runner) balance(c *cli.Context, env *environment) error {
	contract, err := parseAddress("address", c.String("address"))
	if err != nil {
		return err
	}
	holder, err := parseAddress("holder", c.String("holder"))
	if err != nil {
		return err
	}
	balance, decimals, err := env.service.Balance(c.Context, c.String("chain"), contract, holder)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, erc20.FormatUnits(balance, decimals))
	return nil
}

func (r *runner) mint(c *cli.Context, env *environment) error {
	contract, err := parseAddress("address", c.String("address"))
	if err != nil {
		return err
	}
	to, err := parseAddress("to", c.String("to"))
	if err != nil {
		return err
	}
	decimals, err := decimalsOf(c)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c.String("amount"), decimals, c.Bool("raw"))
	if err != nil {
		return err
	}

	result, err := env.service.Mint(c.Context, token.MintRequest{
		Chain:    c.String("chain"),
		Contract: contract,
		To:       to,
		Amount:   amount,
		Wait:     c.Bool("wait"),
	})
	if result != nil {
		fmt.Fprintf(r.out, "tx: %s\n", result.Transaction.Hash().Hex())
		if result.Receipt != nil {
			fmt.Fprintf(r.out, "block: %s\nstatus: %d\n", result.Receipt.BlockNumber, result.Receipt.Status)
		}
	}
	return err
}

func (r *runner) history(c *cli.Context, env *environment) error {
	records, err := env.service.History(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tCHAIN\tCONTRACT\tTX\tAMOUNT")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Unix(record.CreatedAt, 0).UTC().Format(time.RFC3339),
			record.Kind, record.Chain, record.Contract, record.TxHash, record.Amount)
	}
	return w.Flush()
}

func decimalsOf(c *cli.Context) (uint8, error) {
	value := c.Uint("decimals")
	if value > math.MaxUint8 {
		return 0, fmt.Errorf("--decimals 超出范围: %d", value)
	}
	return uint8(value), nil
}

func parseAmount(value string, decimals uint8, raw bool) (*big.Int, error) {
	if !raw {
		return erc20.ParseUnits(value, decimals)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("无效的数量: %q", value)
	}
	return amount, nil
}

func parseAddress(flag, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("--%s 不是有效地址: %q", flag, value)
	}
	return common.HexToAddress(value), nil
}
