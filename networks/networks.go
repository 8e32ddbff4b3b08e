package networks

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// NativeAsset is the sentinel asset address marking a payment made in the
	// chain's native coin instead of a token contract.
	NativeAsset = "native"

	// BurnAddress is the zero address. Transfers authorized to it are destroyed,
	// the validator rejects it as a recipient.
	BurnAddress = "0x0000000000000000000000000000000000000000"
)

const (
	StableAssetDecimals = 6
	NativeAssetDecimals = 18
)

var ErrUnsupportedNetwork = errors.New("unsupported network")

// TokenInfo describes an asset contract together with the EIP-712 domain
// parameters its on-chain implementation signs under.
type TokenInfo struct {
	Address  string
	Symbol   string
	Name     string
	Version  string
	Decimals int
}

// NetworkDescriptor holds the immutable parameters of one supported chain.
type NetworkDescriptor struct {
	ID           string
	ChainID      int64
	RPCURL       string
	ExplorerURL  string
	StableAsset  TokenInfo
	NativeSymbol string
}

// Exactly two networks exist, the production chain and the test chain.
// Both are process-wide constants and are never mutated.
var (
	CronosMainnet = NetworkDescriptor{
		ID:          "cronos",
		ChainID:     25,
		RPCURL:      "https://evm.cronos.org",
		ExplorerURL: "https://explorer.cronos.org",
		StableAsset: TokenInfo{
			Address:  "0xc21223249CA28397B4B6541dfFaEcC539BfF0c59",
			Symbol:   "USDC",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: StableAssetDecimals,
		},
		NativeSymbol: "CRO",
	}

	CronosTestnet = NetworkDescriptor{
		ID:          "cronos-testnet",
		ChainID:     338,
		RPCURL:      "https://evm-t3.cronos.org",
		ExplorerURL: "https://explorer.cronos.org/testnet",
		StableAsset: TokenInfo{
			Address:  "0xf951eC28187D9E5EdB1b7E93C22BEe4d9C48cbB5",
			Symbol:   "devUSDC",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: StableAssetDecimals,
		},
		NativeSymbol: "TCRO",
	}
)

// ByID resolves a logical network id to its descriptor.
func ByID(id string) (NetworkDescriptor, error) {
	switch id {
	case CronosMainnet.ID:
		return CronosMainnet, nil
	case CronosTestnet.ID:
		return CronosTestnet, nil
	default:
		return NetworkDescriptor{}, errors.Join(ErrUnsupportedNetwork, fmt.Errorf("network %s", id))
	}
}

// ByChainID resolves a numeric chain id to its descriptor.
func ByChainID(chainID int64) (NetworkDescriptor, error) {
	switch chainID {
	case CronosMainnet.ChainID:
		return CronosMainnet, nil
	case CronosTestnet.ChainID:
		return CronosTestnet, nil
	default:
		return NetworkDescriptor{}, errors.Join(ErrUnsupportedNetwork, fmt.Errorf("chain id %d", chainID))
	}
}

// IsNative reports whether the asset address is the native-asset sentinel.
func IsNative(asset string) bool {
	return strings.EqualFold(asset, NativeAsset) || asset == ""
}

// KnowsAsset reports whether the asset is settleable on this network, either the
// network's stable asset contract or the native-asset sentinel.
func (n NetworkDescriptor) KnowsAsset(asset string) bool {
	if IsNative(asset) {
		return true
	}
	return strings.EqualFold(asset, n.StableAsset.Address)
}

// TxURL returns the block-explorer URL of a transaction.
func (n NetworkDescriptor) TxURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", n.ExplorerURL, hash)
}

// AddressURL returns the block-explorer URL of an account.
func (n NetworkDescriptor) AddressURL(address string) string {
	return fmt.Sprintf("%s/address/%s", n.ExplorerURL, address)
}
