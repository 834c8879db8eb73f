package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks the callback signature the gateway computes over
// "<order_id>|<payment_id>" with the shared key secret. Comparison is
// constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignatureWith(c.keySecret, orderID, paymentID, signature)
}

// VerifySignatureWith is the secret-explicit form used by tests and by
// callers that hold the secret themselves.
func VerifySignatureWith(secret, orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
