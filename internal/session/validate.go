package session

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// TON wallet grammars: the user-friendly base64url form (48 chars, bounceable
// or non-bounceable prefix) and the raw workchain-zero hex form.
var (
	walletFriendly = regexp.MustCompile(`^[UE][Qf][A-Za-z0-9_-]{46}$`)
	walletRaw      = regexp.MustCompile(`^0:[a-fA-F0-9]{64}$`)
)

var (
	ErrBadWallet  = errors.New("that does not look like a TON wallet address")
	ErrBadPercent = errors.New("percent must be a whole number from 0 to 100")
	ErrBadAmount  = errors.New("amount must be a positive number")
	ErrBadUserID  = errors.New("send a numeric user id")
)

// ValidWallet accepts either TON address grammar and nothing else.
func ValidWallet(s string) error {
	s = strings.TrimSpace(s)
	if walletFriendly.MatchString(s) || walletRaw.MatchString(s) {
		return nil
	}
	return ErrBadWallet
}

// ParsePercent parses a payout percent in [0,100].
func ParsePercent(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 100 {
		return 0, ErrBadPercent
	}
	return n, nil
}

// ParseAmount parses a strictly positive decimal profit amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrBadAmount
	}
	return d, nil
}

// ParseUserID parses a numeric user id.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadUserID
	}
	return id, nil
}

// Validator adapters for Step.Validate.

func ValidPercent(s string) error {
	_, err := ParsePercent(s)
	return err
}

func ValidAmount(s string) error {
	_, err := ParseAmount(s)
	return err
}

func ValidUserID(s string) error {
	_, err := ParseUserID(s)
	return err
}
