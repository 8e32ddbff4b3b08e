package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/cronoslabs/settlex/signing"
)

const gcmNonceSize = 12

var (
	ErrInvalidKey         = errors.New("invalid private key")
	ErrInvalidKeyLength   = errors.New("invalid encryption key length, must be 16 or 32 bytes")
	ErrCipherFailure      = errors.New("cipher creation failure")
	ErrGCMFailure         = errors.New("gcm creation failure")
	ErrRandomNonceFailure = errors.New("random nonce creation failure")
	ErrOpenDataFailure    = errors.New("open data failure, cannot decrypt wallet file")
)

// Config holds the wallet file location.
type Config struct {
	Path string `yaml:"path"` // path to the encrypted wallet file
}

// Wallet holds a secp256k1 key pair and implements the signing capability for
// the account it controls. It is one interchangeable implementation of
// signing.TypedSigner, not the capability boundary itself.
type Wallet struct {
	private *ecdsa.PrivateKey
}

// New tries to create a new Wallet with a fresh key pair or returns error otherwise.
func New() (Wallet, error) {
	private, err := crypto.GenerateKey()
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{private: private}, nil
}

// FromHex restores a Wallet from a hex encoded private key.
func FromHex(h string) (Wallet, error) {
	private, err := crypto.HexToECDSA(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return Wallet{}, errors.Join(ErrInvalidKey, err)
	}
	return Wallet{private: private}, nil
}

// Address returns the account the wallet is bound to.
func (w Wallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.private.PublicKey)
}

// Hex returns the hex encoded private key.
func (w Wallet) Hex() string {
	return hex.EncodeToString(crypto.FromECDSA(w.private))
}

// SignTypedData signs the EIP-712 digest of the typed data and normalizes the
// recovery byte to the on-chain convention of 27 or 28. Satisfies
// signing.TypedSigner.
func (w Wallet) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	digest, err := signing.Digest(data)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(digest, w.private)
	if err != nil {
		return nil, err
	}
	signature[64] += 27
	return signature, nil
}

// SaveToFile writes the private key to path, AES-GCM encrypted with key.
func (w Wallet) SaveToFile(path string, key []byte) error {
	sealed, err := encrypt(key, []byte(w.Hex()))
	if err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0o600)
}

// ReadFromFile restores a wallet saved with SaveToFile.
func ReadFromFile(path string, key []byte) (Wallet, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return Wallet{}, err
	}
	raw, err := decrypt(key, sealed)
	if err != nil {
		return Wallet{}, err
	}
	return FromHex(string(raw))
}

func encrypt(key, data []byte) ([]byte, error) {
	if len(key) != 32 && len(key) != 16 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherFailure, err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrGCMFailure, err)
	}

	return aesgcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	if len(key) != 32 && len(key) != 16 {
		return nil, ErrInvalidKeyLength
	}
	if len(data) <= gcmNonceSize {
		return nil, ErrOpenDataFailure
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherFailure, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrGCMFailure, err)
	}

	raw, err := aesgcm.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, errors.Join(ErrOpenDataFailure, err)
	}
	return raw, nil
}

// EncryptionKey derives a 32-byte file encryption key from a passphrase.
func EncryptionKey(passphrase string) []byte {
	return crypto.Keccak256([]byte(passphrase))
}
