package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "tokenkit/internal/errors"
)

// OperationKind names the chain operation a record describes.
type OperationKind string

const (
	OperationDeploy OperationKind = "deploy"
	OperationMint   OperationKind = "mint"
)

// OperationRecord is one submitted transaction.
type OperationRecord struct {
	ID          string        `json:"id"`
	Kind        OperationKind `json:"kind"`
	Chain       string        `json:"chain"`
	Contract    string        `json:"contract"`
	TxHash      string        `json:"tx_hash"`
	From        string        `json:"from"`
	To          string        `json:"to,omitempty"`
	Amount      string        `json:"amount,omitempty"`
	TokenName   string        `json:"token_name,omitempty"`
	TokenSymbol string        `json:"token_symbol,omitempty"`
	CreatedAt   int64         `json:"created_at"`
}

// OperationRepository abstracts ledger persistence.
type OperationRepository interface {
	Save(ctx context.Context, record OperationRecord) error
	ListLatest(ctx context.Context, limit int) ([]OperationRecord, error)
	Close() error
}

// ErrUnsupportedDriver is returned for unknown ledger drivers.
var ErrUnsupportedDriver = errors.New("unsupported ledger driver")

const memoryRetention = 512

// MemoryOperationRepository appends records to a JSON-lines file and keeps
// the most recent ones in memory.
type MemoryOperationRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []OperationRecord
}

// NewMemoryOperationRepository opens (or creates) dataDir/operations.log.
func NewMemoryOperationRepository(dataDir string) (*MemoryOperationRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "create ledger directory")
	}
	repo := &MemoryOperationRepository{dataFile: filepath.Join(dataDir, "operations.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save appends record to the ledger file.
func (m *MemoryOperationRepository) Save(_ context.Context, record OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := json.Marshal(record)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "encode ledger record")
	}

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "open ledger file")
	}
	defer file.Close()
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "write ledger file")
	}

	m.records = append([]OperationRecord{record}, m.records...)
	if len(m.records) > memoryRetention {
		m.records = m.records[:memoryRetention]
	}
	return nil
}

// ListLatest returns up to limit records, newest first.
func (m *MemoryOperationRepository) ListLatest(_ context.Context, limit int) ([]OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]OperationRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close is a no-op; the file is opened per write.
func (m *MemoryOperationRepository) Close() error { return nil }

func (m *MemoryOperationRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "open ledger file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []OperationRecord
	for scanner.Scan() {
		var record OperationRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]OperationRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "read ledger file")
	}
	if len(restored) > memoryRetention {
		restored = restored[:memoryRetention]
	}
	m.records = restored
	return nil
}

// SQLOperationRepository stores the ledger in MySQL.
type SQLOperationRepository struct {
	db *sql.DB
}

// NewSQLOperationRepository opens the pool and applies pending migrations.
func NewSQLOperationRepository(ctx context.Context, cfg Config) (*SQLOperationRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLOperationRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const insertOperationSQL = `INSERT INTO token_operations
        (id, kind, chain, contract, tx_hash, sender, recipient, amount, token_name, token_symbol, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectLatestOperationsSQL = `SELECT id, kind, chain, contract, tx_hash, sender, recipient, amount, token_name, token_symbol, created_at
        FROM token_operations ORDER BY created_at DESC, seq DESC LIMIT ?`

// Save inserts record.
func (s *SQLOperationRepository) Save(ctx context.Context, record OperationRecord) error {
	if _, err := s.db.ExecContext(ctx, insertOperationSQL,
		record.ID,
		string(record.Kind),
		record.Chain,
		record.Contract,
		record.TxHash,
		record.From,
		record.To,
		record.Amount,
		record.TokenName,
		record.TokenSymbol,
		record.CreatedAt,
	); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, fmt.Sprintf("insert ledger record %s", record.ID))
	}
	return nil
}

// ListLatest returns up to limit records, newest first; seq orders records
// written within the same second. A non-positive limit defaults to 50.
func (s *SQLOperationRepository) ListLatest(ctx context.Context, limit int) ([]OperationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectLatestOperationsSQL, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "query ledger")
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		var (
			record OperationRecord
			kind   string
		)
		if err := rows.Scan(
			&record.ID,
			&kind,
			&record.Chain,
			&record.Contract,
			&record.TxHash,
			&record.From,
			&record.To,
			&record.Amount,
			&record.TokenName,
			&record.TokenSymbol,
			&record.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "scan ledger record")
		}
		record.Kind = OperationKind(kind)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "iterate ledger")
	}
	return records, nil
}

// Close releases the connection pool.
func (s *SQLOperationRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
