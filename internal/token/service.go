package token

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"math/big"
	"time"

	apperrors "tokenkit/internal/errors"
	"tokenkit/internal/events"
	"tokenkit/internal/storage/mysql"
	"tokenkit/internal/web3"
	"tokenkit/internal/web3/erc20"
	"tokenkit/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// Info 汇总代币的只读属性。
type Info struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// MintRequest 描述一次增发。
type MintRequest struct {
	Chain    string
	Contract common.Address
	To       common.Address
	Amount   *big.Int
	Wait     bool
}

// MintResult 返回已提交的交易，Wait 为真时附带回执。
type MintResult struct {
	Transaction *types.Transaction
	Receipt     *types.Receipt
}

// Service 串联链注册表、部署器、台账与事件发布。
type Service struct {
	chains      erc20.ChainRegistry
	artifact    *erc20.Artifact
	contractABI abi.ABI
	ledger      mysql.OperationRepository
	publisher   events.Publisher
	log         *slog.Logger
	now         func() time.Time
}

// Option 定义服务的可选配置。
type Option func(*Service)

// WithArtifact 设置部署使用的合约构建产物，其 ABI 同时用于读写调用。
func WithArtifact(artifact *erc20.Artifact) Option {
	return func(s *Service) { s.artifact = artifact }
}

// WithLedger 设置操作台账。
func WithLedger(ledger mysql.OperationRepository) Option {
	return func(s *Service) { s.ledger = ledger }
}

// WithPublisher 设置事件发布器。
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithLogger 设置服务日志。
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 构造代币服务。
func NewService(chains erc20.ChainRegistry, opts ...Option) *Service {
	s := &Service{chains: chains, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.log == nil {
		s.log = logger.Named("token")
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	s.contractABI = erc20.DefaultABI()
	if s.artifact != nil {
		s.contractABI = s.artifact.ABI
	}
	return s
}

// Deploy 部署代币合约并记录台账。链上错误原样返回；
// 台账或事件失败时仍返回部署结果，同时返回对应的错误。
func (s *Service) Deploy(ctx context.Context, desc erc20.Descriptor) (web3.DeploymentResult, error) {
	if s.artifact == nil {
		return web3.DeploymentResult{}, apperrors.New(apperrors.CodeInvalidArgument, "no contract artifact configured")
	}
	result, err := erc20.NewDeployer(s.chains, s.artifact).Deploy(ctx, desc)
	if err != nil {
		return web3.DeploymentResult{}, err
	}

	contract := result.ContractAddress.Hex()
	txHash := result.Transaction.Hash().Hex()
	from := senderOf(result.Transaction)
	record := mysql.OperationRecord{
		ID:          uuid.NewString(),
		Kind:        mysql.OperationDeploy,
		Chain:       desc.ChainID,
		Contract:    contract,
		TxHash:      txHash,
		From:        from,
		Amount:      desc.InitialSupply.String(),
		TokenName:   desc.Name,
		TokenSymbol: desc.Symbol,
		CreatedAt:   s.now().Unix(),
	}
	event := events.NewEvent(events.TypeTokenDeployed, desc.ChainID, contract, txHash)
	event.From = from
	event.Amount = record.Amount

	return result, s.track(ctx, record, event)
}

// Mint 提交增发交易并记录台账。
func (s *Service) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "mint amount must be positive")
	}
	tok, err := erc20.NewToken(ctx, s.chains, req.Chain, req.Contract, s.contractABI)
	if err != nil {
		return nil, err
	}
	defer tok.Close()

	tx, err := tok.Mint(ctx, req.To, req.Amount)
	if err != nil {
		return nil, err
	}

	contract := req.Contract.Hex()
	txHash := tx.Hash().Hex()
	record := mysql.OperationRecord{
		ID:        uuid.NewString(),
		Kind:      mysql.OperationMint,
		Chain:     req.Chain,
		Contract:  contract,
		TxHash:    txHash,
		From:      tok.From().Hex(),
		To:        req.To.Hex(),
		Amount:    req.Amount.String(),
		CreatedAt: s.now().Unix(),
	}
	event := events.NewEvent(events.TypeTokenMinted, req.Chain, contract, txHash)
	event.From, event.To, event.Amount = record.From, record.To, record.Amount
	trackErr := s.track(ctx, record, event)

	result := &MintResult{Transaction: tx}
	if req.Wait {
		receipt, err := tok.WaitMined(ctx, tx)
		if err != nil {
			return result, stdErrors.Join(err, trackErr)
		}
		result.Receipt = receipt
	}
	return result, trackErr
}

// Info 读取代币名称、符号、精度与总量。
func (s *Service) Info(ctx context.Context, chain string, contract common.Address) (Info, error) {
	tok, err := erc20.NewToken(ctx, s.chains, chain, contract, s.contractABI)
	if err != nil {
		return Info{}, err
	}
	defer tok.Close()

	info := Info{Address: contract}
	if info.Name, err = tok.Name(ctx); err != nil {
		return Info{}, err
	}
	if info.Symbol, err = tok.Symbol(ctx); err != nil {
		return Info{}, err
	}
	if info.Decimals, err = tok.Decimals(ctx); err != nil {
		return Info{}, err
	}
	if info.TotalSupply, err = tok.TotalSupply(ctx); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Balance 查询 holder 的余额与代币精度。
func (s *Service) Balance(ctx context.Context, chain string, contract, holder common.Address) (*big.Int, uint8, error) {
	tok, err := erc20.NewToken(ctx, s.chains, chain, contract, s.contractABI)
	if err != nil {
		return nil, 0, err
	}
	defer tok.Close()

	balance, err := tok.BalanceOf(ctx, holder)
	if err != nil {
		return nil, 0, err
	}
	decimals, err := tok.Decimals(ctx)
	if err != nil {
		return nil, 0, err
	}
	return balance, decimals, nil
}

// History 返回最近的台账记录。
func (s *Service) History(ctx context.Context, limit int) ([]mysql.OperationRecord, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.ListLatest(ctx, limit)
}

func (s *Service) track(ctx context.Context, record mysql.OperationRecord, event events.Event) error {
	logger.Operation(string(record.Kind),
		slog.String("id", record.ID),
		slog.String("chain", record.Chain),
		slog.String("contract", record.Contract),
		slog.String("tx", record.TxHash),
		slog.String("amount", record.Amount),
	)

	var errs []error
	if s.ledger != nil {
		if err := s.ledger.Save(ctx, record); err != nil {
			s.log.Error("记录台账失败", slog.Any("error", err), slog.String("tx", record.TxHash))
			errs = append(errs, err)
		}
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("发布事件失败", slog.Any("error", err), slog.String("event_id", event.ID))
		errs = append(errs, err)
	}
	return stdErrors.Join(errs...)
}

func senderOf(tx *types.Transaction) string {
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return ""
	}
	return sender.Hex()
}
