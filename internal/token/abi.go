package token

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Some older tokens return symbol and name as bytes32, so both layouts are kept.
const erc20StringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20Bytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	stringABI      abi.ABI
	stringABIOnce  sync.Once
	stringABIErr   error
	bytes32ABI     abi.ABI
	bytes32ABIOnce sync.Once
	bytes32ABIErr  error
)

// StringABI is the standard ERC20 metadata ABI.
func StringABI() (abi.ABI, error) {
	stringABIOnce.Do(func() {
		stringABI, stringABIErr = abi.JSON(strings.NewReader(erc20StringJSON))
	})
	return stringABI, stringABIErr
}

// Bytes32ABI is the legacy metadata ABI with bytes32 symbol and name.
func Bytes32ABI() (abi.ABI, error) {
	bytes32ABIOnce.Do(func() {
		bytes32ABI, bytes32ABIErr = abi.JSON(strings.NewReader(erc20Bytes32JSON))
	})
	return bytes32ABI, bytes32ABIErr
}
