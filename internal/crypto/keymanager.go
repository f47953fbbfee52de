// Package crypto handles operator keys: password-encrypted key files for the
// CLI and EIP-191 personal-message signatures used to log in to the API.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen   = 16
	aesKeyLen = 32
	// keyFileVersion is the schema version of the encrypted key file.
	keyFileVersion = 2
)

// kdfIterations is the PBKDF2-HMAC-SHA256 work factor written into new key
// files. Files record their own count, so lowering it never breaks reads.
var kdfIterations = 480_000

// keyFile is the on-disk format of an encrypted private key.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig says where LoadKey finds the private key. A raw key wins over a
// key file.
type KeyConfig struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// ParseKey decodes a hex secp256k1 private key, with or without 0x.
func ParseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return pk, nil
}

// EncryptKey seals key under password with PBKDF2 and AES-256-GCM. The
// address is stored in clear so a file can be identified without unlocking.
func EncryptKey(key *ecdsa.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt, kdfIterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	out := keyFile{
		Version:    keyFileVersion,
		Address:    addr.Hex(),
		Iterations: kdfIterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		// The address is bound as associated data.
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, ethcrypto.FromECDSA(key), addr.Bytes())),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey opens a blob produced by EncryptKey.
func DecryptKey(blob []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	var f keyFile
	if err := json.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("crypto: parsing key file: %w", err)
	}
	if f.Version != keyFileVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", f.Version)
	}
	if f.Iterations <= 0 {
		return nil, fmt.Errorf("crypto: invalid iteration count %d", f.Iterations)
	}

	var salt, nonce, sealed []byte
	for _, field := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", f.Salt, &salt},
		{"nonce", f.Nonce, &nonce},
		{"ciphertext", f.Ciphertext, &sealed},
	} {
		b, err := base64.StdEncoding.DecodeString(field.in)
		if err != nil {
			return nil, fmt.Errorf("crypto: decoding %s: %w", field.name, err)
		}
		*field.out = b
	}

	gcm, err := newGCM(password, salt, f.Iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plain, err := gcm.Open(nil, nonce, sealed, common.HexToAddress(f.Address).Bytes())
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	key, err := ethcrypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypted key: %w", err)
	}
	return key, nil
}

// KeyFileAddress reads the clear-text address of a key file.
func KeyFileAddress(blob []byte) (string, error) {
	var f keyFile
	if err := json.Unmarshal(blob, &f); err != nil {
		return "", fmt.Errorf("crypto: parsing key file: %w", err)
	}
	return f.Address, nil
}

// LoadKey resolves the private key described by cfg.
func LoadKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.RawPrivateKey != "":
		return ParseKey(cfg.RawPrivateKey)
	case cfg.EncryptedKeyPath != "":
		blob, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading key file: %w", err)
		}
		return DecryptKey(blob, cfg.KeyPassword)
	default:
		return nil, errors.New("crypto: no private key source configured")
	}
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
