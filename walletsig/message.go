// Package walletsig implements the wallet sign-in challenge: the message a wallet
// is asked to sign, the single-use nonce bound into it, and verification of the
// detached signature the wallet returns.
package walletsig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	messageHeader = "Sign this message to authenticate with your wallet."
	messageFooter = "This request will not trigger a blockchain transaction or cost any gas fees."

	walletPrefix    = "Wallet: "
	noncePrefix     = "Nonce: "
	timestampPrefix = "Timestamp: "
)

// ErrMalformedMessage is returned by ParseMessage when the text does not follow the challenge template.
var ErrMalformedMessage = errors.New("malformed challenge message")

// BuildMessage renders the challenge text for the given wallet, nonce and
// issuance time (milliseconds since epoch). The output is byte-for-byte stable:
// verification rebuilds it from the submitted fields and checks the signature
// against the rebuilt bytes.
func BuildMessage(address, nonce string, timestamp int64) string {
	var b strings.Builder
	b.Grow(len(messageHeader) + len(messageFooter) + len(address) + len(nonce) + 64)
	b.WriteString(messageHeader)
	b.WriteString("\n\n")
	b.WriteString(walletPrefix)
	b.WriteString(address)
	b.WriteString("\n")
	b.WriteString(noncePrefix)
	b.WriteString(nonce)
	b.WriteString("\n")
	b.WriteString(timestampPrefix)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString("\n\n")
	b.WriteString(messageFooter)
	return b.String()
}

// Fields are the values interpolated into a challenge message.
type Fields struct {
	Address   string
	Nonce     string
	Timestamp int64
}

// ParseMessage extracts the interpolated fields from a challenge message.
// It accepts only text that BuildMessage would have produced for those fields.
func ParseMessage(msg string) (Fields, error) {
	lines := strings.Split(msg, "\n")
	if len(lines) != 7 {
		return Fields{}, fmt.Errorf("%w: expected 7 lines, got %d", ErrMalformedMessage, len(lines))
	}
	if lines[0] != messageHeader || lines[1] != "" || lines[5] != "" || lines[6] != messageFooter {
		return Fields{}, ErrMalformedMessage
	}
	address, ok := strings.CutPrefix(lines[2], walletPrefix)
	if !ok || address == "" {
		return Fields{}, fmt.Errorf("%w: wallet line", ErrMalformedMessage)
	}
	nonce, ok := strings.CutPrefix(lines[3], noncePrefix)
	if !ok || nonce == "" {
		return Fields{}, fmt.Errorf("%w: nonce line", ErrMalformedMessage)
	}
	rawTS, ok := strings.CutPrefix(lines[4], timestampPrefix)
	if !ok {
		return Fields{}, fmt.Errorf("%w: timestamp line", ErrMalformedMessage)
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return Fields{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedMessage, err)
	}
	f := Fields{Address: address, Nonce: nonce, Timestamp: ts}
	if BuildMessage(f.Address, f.Nonce, f.Timestamp) != msg {
		return Fields{}, fmt.Errorf("%w: non-canonical encoding", ErrMalformedMessage)
	}
	return f, nil
}
