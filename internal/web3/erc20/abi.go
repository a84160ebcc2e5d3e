package erc20

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// defaultABIJSON is the interface of the mintable token the deployer ships:
// EIP-20 reads plus mint(address,uint256) and a
// (name, symbol, decimals, initialSupply) constructor.
const defaultABIJSON = `[
  {"type":"constructor","stateMutability":"nonpayable","inputs":[
    {"name":"name_","type":"string"},
    {"name":"symbol_","type":"string"},
    {"name":"decimals_","type":"uint8"},
    {"name":"initialSupply","type":"uint256"}]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]}
]`

var (
	defaultOnce sync.Once
	defaultABI  abi.ABI
)

// DefaultABI returns the built-in mintable ERC20 interface.
func DefaultABI() abi.ABI {
	defaultOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(defaultABIJSON))
		if err != nil {
			panic("erc20: invalid built-in abi: " + err.Error())
		}
		defaultABI = parsed
	})
	return defaultABI
}
