package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSignature = errors.New("invalid signature")

// LoginMessage is the text a wallet signs to log in.
func LoginMessage(walletAddress string) string {
	return "Welcome to Nuvyx\n\nSign this message to verifying your identity.\n\nWallet: " + walletAddress
}

// VerifyWalletSignature checks that signature is a personal_sign of LoginMessage(address) made by
// address. It returns the checksummed address on success.
func VerifyWalletSignature(address, signature string) (string, error) {
	want, err := ChecksumAddress(address)
	if err != nil {
		return "", err
	}
	got, err := RecoverAddress(LoginMessage(address), signature)
	if err != nil {
		return "", err
	}
	if got != want {
		return "", fmt.Errorf("%w: signed by %s", ErrInvalidSignature, got)
	}
	return want, nil
}

// RecoverAddress returns the checksummed address that produced a 65 byte r||s||v personal_sign
// signature over message.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return "", fmt.Errorf("%w: malformed", ErrInvalidSignature)
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig[64])
	}

	// decred wants the recovery byte first
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, personalHash(message))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	raw := pub.SerializeUncompressed()
	return checksum(keccak256(raw[1:])[12:]), nil
}

// ChecksumAddress normalises a hex wallet address to its EIP-55 mixed-case form.
func ChecksumAddress(address string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))
	if err != nil || len(raw) != 20 {
		return "", fmt.Errorf("invalid wallet address %q", address)
	}
	return checksum(raw), nil
}

func checksum(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := keccak256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func personalHash(message string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return keccak256([]byte(prefix), []byte(message))
}

func keccak256(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
