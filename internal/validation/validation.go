// Package validation holds input checks shared by the HTTP handlers
// and the ledger service, plus request hygiene middleware.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrInvalid marks any validation failure.
var ErrInvalid = errors.New("validation failed")

const (
	maxUsernameLen = 32
	minUsernameLen = 3
	minPasswordLen = 8
	maxBodyBytes   = 1 << 20 // 1 MiB
)

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Username checks that a username is lowercase alphanumeric with
// limited punctuation, within length bounds.
func Username(s string) error {
	if len(s) < minUsernameLen || len(s) > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalid, minUsernameLen, maxUsernameLen)
	}
	if !usernameRe.MatchString(s) {
		return fmt.Errorf("%w: username may only contain lowercase letters, digits, '.', '_' and '-'", ErrInvalid)
	}
	return nil
}

// Email performs a light shape check, not RFC 5322.
func Email(s string) error {
	if s == "" || len(s) > 254 || !emailRe.MatchString(s) {
		return fmt.Errorf("%w: malformed email address", ErrInvalid)
	}
	return nil
}

// Password enforces the minimum length. Strength scoring is out of
// scope for a demo credential store.
func Password(s string) error {
	if len(s) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, minPasswordLen)
	}
	return nil
}

// FullName rejects empty and absurdly long names.
func FullName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 128 {
		return fmt.Errorf("%w: full name required", ErrInvalid)
	}
	return nil
}

// BodySizeLimit caps request bodies before handlers read them.
func BodySizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}
