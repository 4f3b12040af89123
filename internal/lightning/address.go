package lightning

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// PubkeyLength is the hex-encoded length of a network node public key.
const PubkeyLength = 66

// Address parse failures. The messages are user-facing: they are sent back
// verbatim as error_message replies.
var (
	ErrEmptyPubkey  = errors.New("Please enter your PubKey")
	ErrPubkeyFormat = errors.New("Invalid PubKey format")
	ErrPubkeyLength = fmt.Errorf("Invalid PubKey length, expected %d characters", PubkeyLength)
)

// NodeAddress is a parsed pubkey with an optional host hint.
type NodeAddress struct {
	Pubkey string
	Host   string // "host[:port]", empty when the input carried no hint
}

// String renders the address in pubkey@host form, or the bare pubkey when no
// host is known.
func (a NodeAddress) String() string {
	if a.Host == "" {
		return a.Pubkey
	}
	return a.Pubkey + "@" + a.Host
}

// ParseNodeAddress parses user input of the form "pubkey[@host[:port]]".
// The pubkey must be exactly PubkeyLength hex characters.
func ParseNodeAddress(input string) (NodeAddress, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return NodeAddress{}, ErrEmptyPubkey
	}

	parts := strings.Split(input, "@")
	if len(parts) > 2 {
		return NodeAddress{}, ErrPubkeyFormat
	}

	addr := NodeAddress{Pubkey: parts[0]}
	if len(parts) == 2 {
		addr.Host = parts[1]
	}

	if len(addr.Pubkey) != PubkeyLength {
		return NodeAddress{}, ErrPubkeyLength
	}
	if _, err := hex.DecodeString(addr.Pubkey); err != nil {
		return NodeAddress{}, ErrPubkeyFormat
	}
	return addr, nil
}
