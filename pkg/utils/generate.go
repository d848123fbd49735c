package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== UUID ====================

func GenerateUUIDString() string {
	return uuid.New().String()
}

// ==================== OTP ====================

// GenerateOTP returns a zero-padded numeric code drawn from crypto/rand.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	digits := n.String()
	return strings.Repeat("0", length-len(digits)) + digits, nil
}

// ==================== TOKEN ====================

// GenerateToken returns size random bytes, hex encoded.
func GenerateToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ==================== TRANSACTION ID ====================

// GenerateTransactionID formats TXN-YYYYMMDD-HHMMSS-NNNN in UTC.
func GenerateTransactionID(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}

	now = now.UTC()
	return fmt.Sprintf("TXN-%s-%s-%04d", now.Format("20060102"), now.Format("150405"), n.Int64()), nil
}
