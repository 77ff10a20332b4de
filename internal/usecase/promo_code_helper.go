package usecase

import (
	"crypto/rand"
	"io"
)

// promoAlphabet is the suffix alphabet: uppercase letters and digits.
const promoAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator returns one candidate code for prefix.
type CodeGenerator func(prefix string) (string, error)

// NewCodeGenerator builds a crypto/rand generator producing PREFIX-SUFFIX
// with a suffix of suffixLen characters.
func NewCodeGenerator(suffixLen int) CodeGenerator {
	if suffixLen <= 0 {
		suffixLen = 8
	}
	return func(prefix string) (string, error) {
		suffix, err := randomSuffix(rand.Reader, suffixLen)
		if err != nil {
			return "", err
		}
		return prefix + "-" + suffix, nil
	}
}

func randomSuffix(r io.Reader, n int) (string, error) {
	// bytes >= maxUnbiased are rejected so each symbol is equally likely
	const maxUnbiased = 256 - 256%len(promoAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, promoAlphabet[int(b)%len(promoAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
