package transactions

import (
	"bytes"
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

const (
	accountVersion     byte = 0x00
	accountPayloadSize      = 20
	checksumSize            = 4
)

//nolint:gochecknoglobals
var ledgerAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

// ValidAccount reports whether address is a well formed classic account
// address: a version byte and account id, followed by a double sha256
// checksum, base58 encoded with the ledger alphabet.
func ValidAccount(address string) bool {
	if address == "" || address[0] != 'r' {
		return false
	}
	decoded, err := base58.FastBase58DecodingAlphabet(address, ledgerAlphabet)
	if err != nil || len(decoded) != 1+accountPayloadSize+checksumSize {
		return false
	}
	if decoded[0] != accountVersion {
		return false
	}
	body, checksum := decoded[:1+accountPayloadSize], decoded[1+accountPayloadSize:]
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return bytes.Equal(second[:checksumSize], checksum)
}
