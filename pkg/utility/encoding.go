package utility

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
)

func registerEncodingFuncs(r *Registry) {
	reg(r, "encoding", "base64Encode", "Encode to standard base64", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "base64Decode", "Decode standard base64", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		raw, decodeErr := base64.StdEncoding.DecodeString(s)
		if decodeErr != nil {
			return nil, fmt.Errorf("base64Decode: %w", decodeErr)
		}
		return string(raw), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "urlEncode", "Percent-encode for use in a query component", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return url.QueryEscape(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "urlDecode", "Decode a percent-encoded string", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		decoded, decodeErr := url.QueryUnescape(s)
		if decodeErr != nil {
			return nil, fmt.Errorf("urlDecode: %w", decodeErr)
		}
		return decoded, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "hexEncode", "Encode to lowercase hex", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return hex.EncodeToString([]byte(s)), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "hexDecode", "Decode a hex string", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		raw, decodeErr := hex.DecodeString(s)
		if decodeErr != nil {
			return nil, fmt.Errorf("hexDecode: %w", decodeErr)
		}
		return string(raw), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "base32Encode", "Encode to standard base32", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return base32.StdEncoding.EncodeToString([]byte(s)), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "base32Decode", "Decode standard base32", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		raw, decodeErr := base32.StdEncoding.DecodeString(s)
		if decodeErr != nil {
			return nil, fmt.Errorf("base32Decode: %w", decodeErr)
		}
		return string(raw), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "htmlEncode", "Escape HTML special characters", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return html.EscapeString(s), nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "encoding", "htmlDecode", "Unescape HTML entities", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return html.UnescapeString(s), nil
	}, Param{Name: "value", Type: "string", Required: true})
}
