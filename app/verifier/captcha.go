package verifier

import (
	"bytes"
	"fmt"

	"github.com/dchest/captcha"
)

// CaptchaChallenger is the default challenge generator, renders a numeric code
// into a distorted PNG image.
type CaptchaChallenger struct{}

// GenerateChallenge makes a random numeric code and its rendered image.
func (c *CaptchaChallenger) GenerateChallenge(width, height, length int) (string, []byte, error) {
	digits := captcha.RandomDigits(length)

	code := make([]byte, length)
	for i, d := range digits {
		code[i] = '0' + d
	}

	img := captcha.NewImage(string(code), digits, width, height)
	var buf bytes.Buffer
	if _, err := img.WriteTo(&buf); err != nil {
		return "", nil, fmt.Errorf("can't render captcha image: %w", err)
	}
	return string(code), buf.Bytes(), nil
}
