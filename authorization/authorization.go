package authorization

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cronoslabs/settlex/currency"
	"github.com/cronoslabs/settlex/networks"
)

var (
	ErrMalformedAddress  = errors.New("malformed address")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrSelfTransfer      = errors.New("self transfer")
	ErrBurnRecipient     = errors.New("transfer to burn address")
	ErrExpired           = errors.New("authorization expired")
	ErrNotYetValid       = errors.New("authorization not yet valid")
	ErrInvalidNonce      = errors.New("invalid nonce format")
	ErrInvalidSignature  = errors.New("invalid signature format")
	ErrNonceGeneration   = errors.New("nonce generation failed")
)

// Option adjusts the validity window of a built authorization.
type Option func(*TransferAuthorization)

// WithValidityWindow sets ValidBefore to now plus the given window.
func WithValidityWindow(window time.Duration) Option {
	return func(a *TransferAuthorization) {
		a.ValidBefore = time.Now().Add(window).Unix()
	}
}

// WithValidAfter sets the moment the authorization becomes acceptable.
// The default of zero means valid immediately.
func WithValidAfter(t time.Time) Option {
	return func(a *TransferAuthorization) {
		a.ValidAfter = t.Unix()
	}
}

// New builds an unsigned transfer authorization. The human-readable amount is
// converted to base units with the asset's decimal scale using exact integer
// arithmetic. Malformed addresses and non-positive amounts are rejected before
// any authorization is returned.
func New(from, to, amount string, decimals int, opts ...Option) (TransferAuthorization, error) {
	if !common.IsHexAddress(from) {
		return TransferAuthorization{}, errors.Join(ErrMalformedAddress, fmt.Errorf("from address %q", from))
	}
	if !common.IsHexAddress(to) {
		return TransferAuthorization{}, errors.Join(ErrMalformedAddress, fmt.Errorf("to address %q", to))
	}

	value, err := currency.ToBaseUnits(amount, decimals)
	if err != nil {
		if errors.Is(err, currency.ErrAmountNotPositive) {
			return TransferAuthorization{}, errors.Join(ErrAmountNotPositive, err)
		}
		return TransferAuthorization{}, err
	}

	nonce, err := NewNonce()
	if err != nil {
		return TransferAuthorization{}, errors.Join(ErrNonceGeneration, err)
	}

	auth := TransferAuthorization{
		From:        common.HexToAddress(from),
		To:          common.HexToAddress(to),
		Value:       value,
		ValidAfter:  0,
		ValidBefore: time.Now().Add(DefaultValidityWindow).Unix(),
		Nonce:       nonce,
	}
	for _, opt := range opts {
		opt(&auth)
	}

	return auth, nil
}

// NewNonce concatenates an 8-byte big-endian unix timestamp with 24 bytes of
// cryptographically secure randomness. Nonces sort chronologically and are
// effectively unique without a central allocator. No local reuse detection
// exists, rejecting a replayed nonce is the settlement service's job.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	binary.BigEndian.PutUint64(nonce[:8], uint64(time.Now().Unix()))
	if _, err := rand.Read(nonce[8:]); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Validate checks every invariant of the authorization in a fixed order and
// returns the first violation. It is pure, performs no I/O, and is applied both
// before signing and at any boundary that accepts an authorization from an
// untrusted source.
func (a TransferAuthorization) Validate() error {
	if a.Value == nil || a.Value.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if a.From == a.To {
		return ErrSelfTransfer
	}
	if a.To == common.HexToAddress(networks.BurnAddress) {
		return ErrBurnRecipient
	}
	now := time.Now().Unix()
	if a.ValidBefore <= now {
		return errors.Join(ErrExpired, fmt.Errorf("valid before %d, now %d", a.ValidBefore, now))
	}
	if a.ValidAfter > now {
		return errors.Join(ErrNotYetValid, fmt.Errorf("valid after %d, now %d", a.ValidAfter, now))
	}
	if len(a.Nonce) != NonceLength {
		return errors.Join(ErrInvalidNonce, fmt.Errorf("nonce is %d bytes, want %d", len(a.Nonce), NonceLength))
	}
	return nil
}

// Validate checks the authorization invariants and the signature length.
func (s SignedTransferAuthorization) Validate() error {
	if err := s.TransferAuthorization.Validate(); err != nil {
		return err
	}
	if len(s.Signature) != SignatureLength {
		return errors.Join(ErrInvalidSignature, fmt.Errorf("signature is %d bytes, want %d", len(s.Signature), SignatureLength))
	}
	return nil
}
