package validate

import (
	"encoding/base64"
	"strings"
)

// LengthBetween returns true if n is within [min,max].
func LengthBetween(s string, min, max int) bool {
	n := len(s)
	return n >= min && n <= max
}

// IsAlphabet returns true if all characters in s are in allowed set.
func IsAlphabet(s, allowed string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(allowed, rune(s[i])) {
			return false
		}
	}
	return true
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	return IsAlphabet(s, "0123456789")
}

// IsBase64URLNoPad reports whether s is valid base64url (no padding) for JWT segments.
func IsBase64URLNoPad(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

// Luhn runs the alternating-double checksum used by payment cards. Any
// non-digit character makes the candidate invalid.
func Luhn(s string) bool {
	if !IsDigits(s) {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var idCardWeights = [17]int{7, 9, 10, 5, 8, 4, 2, 1, 6, 3, 7, 9, 10, 5, 8, 4, 2}

const idCardCheck = "10X98765432"

// ChineseIDChecksum validates the GB 11643 (ISO 7064 MOD 11-2) check
// character of an 18-character resident identity number.
func ChineseIDChecksum(s string) bool {
	if len(s) != 18 || !IsDigits(s[:17]) {
		return false
	}
	sum := 0
	for i := 0; i < 17; i++ {
		sum += int(s[i]-'0') * idCardWeights[i]
	}
	want := idCardCheck[sum%11]
	got := s[17]
	if got == 'x' {
		got = 'X'
	}
	return got == want
}

// IBAN validates the ISO 13616 mod-97 check. Spaces are ignored.
func IBAN(s string) bool {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if !LengthBetween(s, 15, 34) {
		return false
	}
	const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	if !IsAlphabet(s, alnum) || !IsDigits(s[2:4]) {
		return false
	}
	rearranged := s[4:] + s[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		if c >= 'A' && c <= 'Z' {
			v := int(c-'A') + 10
			rem = (rem*100 + v) % 97
			continue
		}
		rem = (rem*10 + int(c-'0')) % 97
	}
	return rem == 1
}

// cardPrefixes lists issuer identification prefixes accepted in strict mode,
// as inclusive ranges over the leading digits.
var cardPrefixes = []struct {
	digits  int
	low, hi int
}{
	{1, 4, 4},       // visa
	{2, 51, 55},     // mastercard
	{4, 2221, 2720}, // mastercard 2-series
	{2, 34, 34},     // amex
	{2, 37, 37},     // amex
	{4, 6011, 6011}, // discover
	{2, 65, 65},     // discover
	{3, 644, 649},   // discover
	{2, 62, 62},     // unionpay
	{4, 3528, 3589}, // jcb
	{3, 300, 305},   // diners
	{2, 36, 36},     // diners
	{2, 38, 38},     // diners
}

// KnownCardIssuer reports whether a digit string starts with a recognised
// payment-network prefix.
func KnownCardIssuer(s string) bool {
	if !IsDigits(s) {
		return false
	}
	for _, p := range cardPrefixes {
		if len(s) < p.digits {
			continue
		}
		v := 0
		for i := 0; i < p.digits; i++ {
			v = v*10 + int(s[i]-'0')
		}
		if v >= p.low && v <= p.hi {
			return true
		}
	}
	return false
}

// LooksLikeGitHubToken performs simple validation on a GitHub token candidate.
// Accepts ghp_, gho_, ghu_, ghs_, ghr_ followed by 36 base62 chars.
func LooksLikeGitHubToken(s string) bool {
	if !(strings.HasPrefix(s, "ghp_") || strings.HasPrefix(s, "gho_") || strings.HasPrefix(s, "ghu_") || strings.HasPrefix(s, "ghs_") || strings.HasPrefix(s, "ghr_")) {
		return false
	}
	tail := s[4:]
	if len(tail) != 36 {
		return false
	}
	const base62 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	return IsAlphabet(tail, base62)
}

// LooksLikeAWSAccessKey checks for AKIA/ASIA + 16 uppercase alnum.
func LooksLikeAWSAccessKey(s string) bool {
	if !(strings.HasPrefix(s, "AKIA") || strings.HasPrefix(s, "ASIA")) {
		return false
	}
	if len(s) != 20 {
		return false
	}
	const upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	return IsAlphabet(s[4:], upperAlnum)
}

// IsJWTStructure verifies 3 segments base64url-decodable for header and payload.
func IsJWTStructure(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	if !IsBase64URLNoPad(parts[0]) || !IsBase64URLNoPad(parts[1]) {
		return false
	}
	// signature can be empty or non-decodable; we do not require decoding
	return true
}
