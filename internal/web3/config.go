package web3

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint and the credential used to
// sign transactions on it.
type ChainDefinition struct {
	RPCURL      string `yaml:"rpc_url"`
	Wallet      string `yaml:"wallet"`
	WalletEnv   string `yaml:"wallet_env"`
	ChainID     uint64 `yaml:"chain_id"`
	Description string `yaml:"description"`
}

// Credential returns the signing key, preferring the inline value.
func (d ChainDefinition) Credential() string {
	if key := strings.TrimSpace(d.Wallet); key != "" {
		return key
	}
	if env := strings.TrimSpace(d.WalletEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// NumericChainID resolves the EIP-155 chain id from the definition or, when
// absent, from a decimal chain identifier. It returns nil if neither applies.
func (d ChainDefinition) NumericChainID(identifier string) *big.Int {
	if d.ChainID != 0 {
		return new(big.Int).SetUint64(d.ChainID)
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(identifier), 10)
	if !ok || id.Sign() <= 0 {
		return nil
	}
	return id
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("read chain definitions: %w", err)
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes chain definitions from raw YAML.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("parse chain definitions: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, def := range defs.Chains {
		if strings.TrimSpace(def.RPCURL) == "" {
			return ChainDefinitions{}, fmt.Errorf("chain %s has no rpc_url", name)
		}
	}
	return defs, nil
}
