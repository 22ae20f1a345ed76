package utility

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|secret|token|authorization|api[_-]?key|credential|cookie)`)

var scriptTagPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)

func registerSecurityFuncs(r *Registry) {
	reg(r, "security", "generateJWT", "Sign an HS256 JWT from a claims object", func(args []interface{}) (interface{}, error) {
		claimsArg, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		secret, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		claims := jwt.MapClaims{}
		if m, ok := claimsArg.(map[string]interface{}); ok {
			for k, v := range m {
				claims[k] = v
			}
		} else {
			return nil, fmt.Errorf("generateJWT: claims must be an object")
		}
		if _, ok := claims["iat"]; !ok {
			claims["iat"] = time.Now().Unix()
		}
		if expiresIn := optionalInt(args, 2, 0); expiresIn > 0 {
			claims["exp"] = time.Now().Add(time.Duration(expiresIn) * time.Second).Unix()
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return token.SignedString([]byte(secret))
	}, Param{Name: "claims", Type: "object", Required: true},
		Param{Name: "secret", Type: "string", Required: true},
		Param{Name: "expiresInSeconds", Type: "number"})

	reg(r, "security", "verifyJWT", "Verify an HS256 JWT and return its claims", func(args []interface{}) (interface{}, error) {
		tokenText, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		secret, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		parsed, parseErr := jwt.Parse(tokenText, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return []byte(secret), nil
		})
		if parseErr != nil {
			return map[string]interface{}{"valid": false, "error": parseErr.Error()}, nil
		}
		claims, _ := parsed.Claims.(jwt.MapClaims)
		out := map[string]interface{}{"valid": true, "claims": map[string]interface{}(claims)}
		return out, nil
	}, Param{Name: "token", Type: "string", Required: true},
		Param{Name: "secret", Type: "string", Required: true})

	reg(r, "security", "generateApiKey", "Random URL-safe API key", func(args []interface{}) (interface{}, error) {
		length := optionalInt(args, 0, 32)
		if length < 8 {
			return nil, fmt.Errorf("generateApiKey: length must be at least 8")
		}
		raw := make([]byte, length)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		key := base64.RawURLEncoding.EncodeToString(raw)
		return key[:length], nil
	}, Param{Name: "length", Type: "number", Default: 32})

	reg(r, "security", "maskSensitiveData", "Mask values whose keys look sensitive", func(args []interface{}) (interface{}, error) {
		value, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		return maskSensitive(value), nil
	}, Param{Name: "value", Type: "any", Required: true})

	reg(r, "security", "sanitizeInput", "Strip script tags and angle brackets from input", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		s = scriptTagPattern.ReplaceAllString(s, "")
		s = strings.ReplaceAll(s, "<", "&lt;")
		s = strings.ReplaceAll(s, ">", "&gt;")
		return s, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "security", "generateCSRFToken", "Random CSRF token (base64url)", func(args []interface{}) (interface{}, error) {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		return base64.RawURLEncoding.EncodeToString(raw), nil
	})

	reg(r, "security", "generateSecurePassword", "Random password with upper, lower, digit and symbol classes", func(args []interface{}) (interface{}, error) {
		length := optionalInt(args, 0, 16)
		if length < 8 {
			return nil, fmt.Errorf("generateSecurePassword: length must be at least 8")
		}
		return securePassword(length)
	}, Param{Name: "length", Type: "number", Default: 16})
}

// MaskValue is the replacement written over sensitive values.
const MaskValue = "********"

func maskSensitive(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			if sensitiveKeyPattern.MatchString(k) {
				out[k] = MaskValue
				continue
			}
			out[k] = maskSensitive(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = maskSensitive(inner)
		}
		return out
	default:
		return value
	}
}

// SensitiveKey reports whether a header or field name should be masked in
// logs and reports.
func SensitiveKey(name string) bool {
	return sensitiveKeyPattern.MatchString(name)
}

const (
	passwordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordLower   = "abcdefghijkmnpqrstuvwxyz"
	passwordDigits  = "23456789"
	passwordSymbols = "!@#$%^&*-_=+"
)

func securePassword(length int) (string, error) {
	classes := []string{passwordUpper, passwordLower, passwordDigits, passwordSymbols}
	all := strings.Join(classes, "")
	out := make([]byte, length)
	// One character from each class, the rest from the full alphabet.
	for i := range out {
		pool := all
		if i < len(classes) {
			pool = classes[i]
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
		if err != nil {
			return "", err
		}
		out[i] = pool[n.Int64()]
	}
	// Shuffle so the guaranteed classes are not positional.
	for i := length - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[n.Int64()] = out[n.Int64()], out[i]
	}
	return string(out), nil
}
