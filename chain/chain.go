// Package chain is the read-only chain-query capability. Any EVM-compatible
// JSON-RPC provider suffices, the rest of the system consumes the Reader
// interface and never issues a write.
package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrMalformedResponse = errors.New("malformed contract response")

// Config holds the chain client configuration.
type Config struct {
	RPCURL string `yaml:"rpc_url"` // overrides the network descriptor's default endpoint when set
}

// Reader is the chain-query capability consumed by receipt verification.
type Reader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Client implements Reader over an EVM JSON-RPC endpoint and adds read-only
// asset metadata calls.
type Client struct {
	ec    *ethclient.Client
	erc20 abi.ABI
}

// Dial connects to the JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	return &Client{ec: ec, erc20: parsed}, nil
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// TransactionReceipt fetches the receipt of a mined transaction.
// Returns ethereum.NotFound when the transaction is unknown to the node.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.ec.TransactionReceipt(ctx, hash)
}

// TransactionByHash fetches the full transaction details.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return c.ec.TransactionByHash(ctx, hash)
}

// BlockNumber returns the most recent block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.ec.BlockNumber(ctx)
}

// BalanceAt returns the native asset balance of the account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.ec.BalanceAt(ctx, account, nil)
}

// TokenBalance reads balanceOf(owner) on the token contract.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, ErrMalformedResponse
	}
	return balance, nil
}

// TokenDecimals reads the token's decimal scale.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, ErrMalformedResponse
	}
	return decimals, nil
}

// TokenSymbol reads the token's symbol.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := c.call(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out[0].(string)
	if !ok {
		return "", ErrMalformedResponse
	}
	return symbol, nil
}

// TokenName reads the token's name as used in its EIP-712 domain.
func (c *Client) TokenName(ctx context.Context, token common.Address) (string, error) {
	out, err := c.call(ctx, token, "name")
	if err != nil {
		return "", err
	}
	name, ok := out[0].(string)
	if !ok {
		return "", ErrMalformedResponse
	}
	return name, nil
}

func (c *Client) call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := c.erc20.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.erc20.Unpack(method, raw)
	if err != nil {
		return nil, errors.Join(ErrMalformedResponse, err)
	}
	if len(out) == 0 {
		return nil, ErrMalformedResponse
	}
	return out, nil
}
