package erc20

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	apperrors "tokenkit/internal/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract: its interface and creation bytecode.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a build artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "read contract artifact",
			apperrors.WithMetadata("path", path))
	}
	artifact, err := ParseArtifact(content)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "parse contract artifact",
			apperrors.WithMetadata("path", path))
	}
	return artifact, nil
}

// ParseArtifact decodes Hardhat ("bytecode": "0x...") and Foundry
// ("bytecode": {"object": "0x..."}) artifacts.
func ParseArtifact(content []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(file.ABI)) == 0 {
		return nil, fmt.Errorf("artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("decode abi: %w", err)
	}

	code, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, err
	}
	return &Artifact{ContractName: file.ContractName, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("artifact has no bytecode")
	}

	var hexCode string
	if raw[0] == '{' {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("decode bytecode: %w", err)
		}
		hexCode = nested.Object
	} else if err := json.Unmarshal(raw, &hexCode); err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}

	hexCode = strings.TrimSpace(hexCode)
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode")
	}
	return code, nil
}
