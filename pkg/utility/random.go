package utility

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const (
	alphaChars        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numericChars      = "0123456789"
	alphanumericChars = alphaChars + numericChars
)

func randomFromCharset(charset string, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(charset[rand.Intn(len(charset))])
	}
	return b.String()
}

func registerRandomFuncs(r *Registry) {
	reg(r, "random", "uuid", "Random UUIDv4", func(args []interface{}) (interface{}, error) {
		return uuid.NewString(), nil
	})

	reg(r, "random", "string", "Random letters", func(args []interface{}) (interface{}, error) {
		length := optionalInt(args, 0, 10)
		if length < 0 {
			return nil, fmt.Errorf("length cannot be negative")
		}
		return randomFromCharset(alphaChars, length), nil
	}, Param{Name: "length", Type: "number", Default: 10})

	reg(r, "random", "alphanumeric", "Random letters and digits", func(args []interface{}) (interface{}, error) {
		length := optionalInt(args, 0, 10)
		if length < 0 {
			return nil, fmt.Errorf("length cannot be negative")
		}
		return randomFromCharset(alphanumericChars, length), nil
	}, Param{Name: "length", Type: "number", Default: 10})

	reg(r, "random", "numeric", "Random digits", func(args []interface{}) (interface{}, error) {
		length := optionalInt(args, 0, 6)
		if length < 0 {
			return nil, fmt.Errorf("length cannot be negative")
		}
		return randomFromCharset(numericChars, length), nil
	}, Param{Name: "length", Type: "number", Default: 6})

	reg(r, "random", "boolean", "Random boolean", func(args []interface{}) (interface{}, error) {
		return rand.Intn(2) == 1, nil
	})

	reg(r, "random", "arrayElement", "Random element of an array", func(args []interface{}) (interface{}, error) {
		v, err := argAt(args, 0)
		if err != nil {
			return nil, err
		}
		arr, ok := v.([]interface{})
		if !ok || len(arr) == 0 {
			return nil, fmt.Errorf("arrayElement expects a non-empty array")
		}
		return arr[rand.Intn(len(arr))], nil
	}, Param{Name: "array", Type: "array", Required: true})

	reg(r, "random", "email", "Random email address", func(args []interface{}) (interface{}, error) {
		domain := optionalString(args, 0, "example.com")
		return fmt.Sprintf("%s@%s", strings.ToLower(randomFromCharset(alphaChars, 8)), domain), nil
	}, Param{Name: "domain", Type: "string", Default: "example.com"})

	reg(r, "random", "phoneNumber", "Random E.164-style phone number", func(args []interface{}) (interface{}, error) {
		return "+1" + randomFromCharset("23456789", 1) + randomFromCharset(numericChars, 9), nil
	})
}
