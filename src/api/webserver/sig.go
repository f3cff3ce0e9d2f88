package webserver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// decodeSS58 converts an SS58 or 0x-hex address to the raw 32-byte public key.
func decodeSS58(addr string) ([]byte, error) {
	if strings.HasPrefix(addr, "0x") {
		return hex.DecodeString(addr[2:])
	}

	raw, err := base58.Decode(addr)
	if err != nil || len(raw) < 35 {
		return nil, errors.New("invalid ss58 address")
	}
	return raw[1:33], nil // drop 1-byte prefix and 2-byte checksum
}

func strip0x(s string) string {
	return strings.TrimPrefix(s, "0x")
}

// verifySignature checks an sr25519 signature over nonce. Wallets using
// signRaw wrap the payload in <Bytes> tags, so both forms are accepted.
func verifySignature(addr, sigHex, nonce string) error {
	pubKeyBytes, err := decodeSS58(addr)
	if err != nil {
		return err
	}
	if len(pubKeyBytes) != 32 {
		return fmt.Errorf("invalid public key length: %d", len(pubKeyBytes))
	}

	sigBytes, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubKeyBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err := pk.Decode(pkRaw); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	var sig schnorrkel.Signature
	if err := sig.Decode(sigRaw); err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	for _, msg := range []string{nonce, "<Bytes>" + nonce + "</Bytes>"} {
		ok, err := pk.Verify(&sig, schnorrkel.NewSigningContext([]byte("substrate"), []byte(msg)))
		if err == nil && ok {
			return nil
		}
	}
	return errors.New("signature verification failed")
}

func issueJWT(addr string, secret []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}
