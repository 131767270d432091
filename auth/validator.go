package auth

import (
	"collab-live/domain"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const identityRule = "required,max=64,printascii,excludesall= /?#&"

// ParseIdentity returns the identity carried by raw, or the anonymous identity
// when raw is malformed. A malformed identity never reaches the registry.
func ParseIdentity(raw string) (domain.IdentityID, bool) {
	raw = strings.TrimSpace(raw)
	if err := validate.Var(raw, identityRule); err != nil {
		return "", false
	}
	return domain.IdentityID(raw), true
}

// Validate runs the struct tags of a request payload.
func Validate(v any) error {
	return validate.Struct(v)
}
