package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomDiscountCode returns five random uppercase letters.
func RandomDiscountCode() (string, error) {
	buf := make([]byte, 5)
	max := big.NewInt(int64(len(codeLetters)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeLetters[n.Int64()]
	}
	return string(buf), nil
}

// PaymentCodePrefix is the DDMMYY part of a payment code.
func PaymentCodePrefix(t time.Time) string {
	return t.Format("020106")
}

// PaymentCode joins the daily prefix and a four digit sequence.
func PaymentCode(t time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", PaymentCodePrefix(t), seq)
}
