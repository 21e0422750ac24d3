package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ComputeLineSignature returns base64(HMAC-SHA256(secret, body)), the value LINE
// sends in the X-Line-Signature header.
func ComputeLineSignature(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyLineSignature checks signature against body in constant time.
func VerifyLineSignature(secret string, body []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), got)
}
