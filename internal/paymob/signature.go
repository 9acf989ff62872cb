package paymob

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// CanonicalString concatenates the transaction fields in the order Paymob signs them.
func CanonicalString(tx Transaction) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(tx.AmountCents, 10))
	b.WriteString(tx.CreatedAt)
	b.WriteString(tx.Currency)
	b.WriteString(strconv.FormatBool(tx.ErrorOccured))
	b.WriteString(strconv.FormatBool(tx.HasParentTransaction))
	b.WriteString(strconv.FormatInt(tx.ID, 10))
	b.WriteString(strconv.FormatInt(tx.IntegrationID, 10))
	b.WriteString(strconv.FormatBool(tx.Is3DSecure))
	b.WriteString(strconv.FormatBool(tx.IsAuth))
	b.WriteString(strconv.FormatBool(tx.IsCapture))
	b.WriteString(strconv.FormatBool(tx.IsRefunded))
	b.WriteString(strconv.FormatBool(tx.IsStandalonePayment))
	b.WriteString(strconv.FormatBool(tx.IsVoided))
	b.WriteString(strconv.FormatInt(tx.Order.ID, 10))
	b.WriteString(strconv.FormatInt(tx.Owner, 10))
	b.WriteString(strconv.FormatBool(tx.Pending))
	b.WriteString(tx.SourceData.Pan)
	b.WriteString(tx.SourceData.SubType)
	b.WriteString(tx.SourceData.Type)
	b.WriteString(strconv.FormatBool(tx.Success))
	return b.String()
}

// Sign returns the lower-case hex HMAC-SHA512 of the canonical fields.
func (v *Verifier) Sign(tx Transaction) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(CanonicalString(tx)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(tx Transaction, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(CanonicalString(tx)))
	return hmac.Equal(got, mac.Sum(nil))
}
