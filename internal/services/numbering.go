package services

import (
	"math/big"
	"strings"
)

// IncrementInvoiceNumber bumps the trailing digit run of an invoice number,
// keeping its zero padding and any prefix. A number without trailing digits
// gets "-1" appended.
//
//	INV-1001 -> INV-1002
//	INV-0099 -> INV-0100
//	INV-9999 -> INV-10000
//	CONSULT  -> CONSULT-1
func IncrementInvoiceNumber(s string) string {
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return s + "-1"
	}

	digits := s[start:end]
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return s + "-1"
	}
	next := n.Add(n, big.NewInt(1)).String()
	if pad := len(digits) - len(next); pad > 0 {
		next = strings.Repeat("0", pad) + next
	}
	return s[:start] + next
}
