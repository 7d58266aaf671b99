package adminauth

import (
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "Kassabook Admin"

// NewTOTPSecret generates a fresh TOTP secret for the operator and returns
// the shared secret plus the otpauth:// provisioning URL.
func NewTOTPSecret(account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// verifyTOTP checks a one-time code against the operator's stored secret.
func verifyTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
