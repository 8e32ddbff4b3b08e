// Package signing produces network-bound, domain-separated signatures over
// transfer authorizations. The private key never enters this package, signing
// is delegated to an injected TypedSigner capability so software keys, hardware
// wallets and remote signers stay interchangeable.
package signing

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/cronoslabs/settlex/authorization"
	"github.com/cronoslabs/settlex/networks"
)

const primaryType = "TransferWithAuthorization"

var (
	ErrNoCapability    = errors.New("no signing capability available")
	ErrAccountMismatch = errors.New("signing capability is not bound to the from account")
	ErrSigningFailed   = errors.New("signing failed")
)

// TypedSigner is the injected signing capability bound to one account.
type TypedSigner interface {
	SignTypedData(data apitypes.TypedData) ([]byte, error)
	Address() common.Address
}

// Domain builds the EIP-712 domain for an asset on a network. The numeric chain
// id is part of the domain, a signature produced for one network can never be
// replayed on another.
func Domain(token networks.TokenInfo, network networks.NetworkDescriptor) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              token.Name,
		Version:           token.Version,
		ChainId:           math.NewHexOrDecimal256(network.ChainID),
		VerifyingContract: token.Address,
	}
}

// TypedData assembles the typed payload signed for a transfer authorization.
func TypedData(domain apitypes.TypedDataDomain, auth authorization.TransferAuthorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			primaryType: []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: primaryType,
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  math.NewHexOrDecimal256(auth.ValidAfter),
			"validBefore": math.NewHexOrDecimal256(auth.ValidBefore),
			"nonce":       auth.NonceHex(),
		},
	}
}

// Digest computes the EIP-712 digest, keccak256(0x1901 || domain hash || struct hash).
func Digest(data apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hashing domain failed, %w", err)
	}
	structHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, fmt.Errorf("hashing message failed, %w", err)
	}
	raw := append([]byte{0x19, 0x01}, append(domainSeparator, structHash...)...)
	return crypto.Keccak256(raw), nil
}

// Signer signs transfer authorizations with an injected capability.
type Signer struct {
	capability TypedSigner
}

// New creates a Signer over the given capability. A nil capability is allowed,
// signing then fails with ErrNoCapability so the caller can route the payment
// to an external wallet instead.
func New(capability TypedSigner) Signer {
	return Signer{capability: capability}
}

// Sign validates the authorization, binds it to the asset's domain on the given
// network and signs its typed fields. The capability must be bound to the
// authorization's from account.
func (s Signer) Sign(network networks.NetworkDescriptor, token networks.TokenInfo, auth authorization.TransferAuthorization) (authorization.SignedTransferAuthorization, error) {
	if err := auth.Validate(); err != nil {
		return authorization.SignedTransferAuthorization{}, err
	}
	if s.capability == nil {
		return authorization.SignedTransferAuthorization{}, ErrNoCapability
	}
	if s.capability.Address() != auth.From {
		return authorization.SignedTransferAuthorization{}, errors.Join(
			ErrAccountMismatch,
			fmt.Errorf("capability holds %s, authorization is from %s", s.capability.Address().Hex(), auth.From.Hex()))
	}

	signature, err := s.capability.SignTypedData(TypedData(Domain(token, network), auth))
	if err != nil {
		return authorization.SignedTransferAuthorization{}, errors.Join(ErrSigningFailed, err)
	}
	if len(signature) != authorization.SignatureLength {
		return authorization.SignedTransferAuthorization{}, errors.Join(
			authorization.ErrInvalidSignature,
			fmt.Errorf("capability returned %d bytes, want %d", len(signature), authorization.SignatureLength))
	}

	return authorization.SignedTransferAuthorization{TransferAuthorization: auth, Signature: signature}, nil
}
