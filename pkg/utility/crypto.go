package utility

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2SaltLen    = 16
	pbkdf2KeyLen     = 32
)

func hashFunc(h func() hash.Hash) Func {
	return func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		hasher := h()
		hasher.Write([]byte(s))
		return hex.EncodeToString(hasher.Sum(nil)), nil
	}
}

func hmacFunc(h func() hash.Hash) Func {
	return func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		key, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		mac := hmac.New(h, []byte(key))
		mac.Write([]byte(s))
		return hex.EncodeToString(mac.Sum(nil)), nil
	}
}

func registerCryptoFuncs(r *Registry) {
	reg(r, "crypto", "md5", "MD5 hex digest", hashFunc(md5.New),
		Param{Name: "value", Type: "string", Required: true})
	reg(r, "crypto", "sha1", "SHA-1 hex digest", hashFunc(sha1.New),
		Param{Name: "value", Type: "string", Required: true})
	reg(r, "crypto", "sha256", "SHA-256 hex digest", hashFunc(sha256.New),
		Param{Name: "value", Type: "string", Required: true})
	reg(r, "crypto", "sha512", "SHA-512 hex digest", hashFunc(sha512.New),
		Param{Name: "value", Type: "string", Required: true})

	reg(r, "crypto", "hmacSha256", "HMAC-SHA256 hex digest", hmacFunc(sha256.New),
		Param{Name: "value", Type: "string", Required: true},
		Param{Name: "key", Type: "string", Required: true})
	reg(r, "crypto", "hmacSha512", "HMAC-SHA512 hex digest", hmacFunc(sha512.New),
		Param{Name: "value", Type: "string", Required: true},
		Param{Name: "key", Type: "string", Required: true})

	reg(r, "crypto", "pbkdf2", "Derive a salted PBKDF2-SHA256 hash (salt:hash hex)", func(args []interface{}) (interface{}, error) {
		password, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		salt := make([]byte, pbkdf2SaltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
		return hex.EncodeToString(salt) + ":" + hex.EncodeToString(derived), nil
	}, Param{Name: "password", Type: "string", Required: true})

	reg(r, "crypto", "verifyPbkdf2", "Verify a password against a salt:hash pair", func(args []interface{}) (interface{}, error) {
		password, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		stored, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		idx := strings.IndexByte(stored, ':')
		if idx <= 0 {
			return false, nil
		}
		saltHex, hashHex := stored[:idx], stored[idx+1:]
		salt, decodeErr := hex.DecodeString(saltHex)
		if decodeErr != nil {
			return false, nil
		}
		expected, decodeErr := hex.DecodeString(hashHex)
		if decodeErr != nil {
			return false, nil
		}
		derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(expected), sha256.New)
		return hmac.Equal(derived, expected), nil
	}, Param{Name: "password", Type: "string", Required: true},
		Param{Name: "stored", Type: "string", Required: true})

	reg(r, "crypto", "aesEncrypt", "AES-256-GCM encrypt, base64 output", func(args []interface{}) (interface{}, error) {
		plaintext, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		passphrase, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		gcm, err := gcmFromPassphrase(passphrase)
		if err != nil {
			return nil, err
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
		return base64.StdEncoding.EncodeToString(sealed), nil
	}, Param{Name: "plaintext", Type: "string", Required: true},
		Param{Name: "passphrase", Type: "string", Required: true})

	reg(r, "crypto", "aesDecrypt", "AES-256-GCM decrypt from base64", func(args []interface{}) (interface{}, error) {
		encoded, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		passphrase, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		sealed, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return nil, fmt.Errorf("aesDecrypt: %w", decodeErr)
		}
		gcm, err := gcmFromPassphrase(passphrase)
		if err != nil {
			return nil, err
		}
		if len(sealed) < gcm.NonceSize() {
			return nil, fmt.Errorf("aesDecrypt: ciphertext too short")
		}
		nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
		plain, openErr := gcm.Open(nil, nonce, ciphertext, nil)
		if openErr != nil {
			return nil, fmt.Errorf("aesDecrypt: %w", openErr)
		}
		return string(plain), nil
	}, Param{Name: "ciphertext", Type: "string", Required: true},
		Param{Name: "passphrase", Type: "string", Required: true})

	reg(r, "crypto", "randomBytes", "Random bytes as hex", func(args []interface{}) (interface{}, error) {
		n := optionalInt(args, 0, 32)
		if n < 1 {
			return nil, fmt.Errorf("randomBytes: length must be positive")
		}
		b := make([]byte, n)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		return hex.EncodeToString(b), nil
	}, Param{Name: "length", Type: "number", Default: 32})

	reg(r, "crypto", "rsaGenerateKeyPair", "Generate an RSA key pair in PEM", func(args []interface{}) (interface{}, error) {
		bits := optionalInt(args, 0, 2048)
		if bits < 1024 {
			return nil, fmt.Errorf("rsaGenerateKeyPair: key size too small")
		}
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, err
		}
		privPEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			return nil, err
		}
		pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
		return map[string]interface{}{
			"privateKey": string(privPEM),
			"publicKey":  string(pubPEM),
		}, nil
	}, Param{Name: "bits", Type: "number", Default: 2048})

	reg(r, "crypto", "rsaSign", "RSA-SHA256 signature, base64", func(args []interface{}) (interface{}, error) {
		message, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		privPEM, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		key, err := parsePrivateKey(privPEM)
		if err != nil {
			return nil, err
		}
		digest := sha256.Sum256([]byte(message))
		sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(sig), nil
	}, Param{Name: "message", Type: "string", Required: true},
		Param{Name: "privateKey", Type: "string", Required: true})

	reg(r, "crypto", "rsaVerify", "Verify an RSA-SHA256 signature", func(args []interface{}) (interface{}, error) {
		message, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		sigB64, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		pubPEM, err := stringArg(args, 2)
		if err != nil {
			return nil, err
		}
		sig, decodeErr := base64.StdEncoding.DecodeString(sigB64)
		if decodeErr != nil {
			return false, nil
		}
		pub, parseErr := parsePublicKey(pubPEM)
		if parseErr != nil {
			return false, nil
		}
		digest := sha256.Sum256([]byte(message))
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil, nil
	}, Param{Name: "message", Type: "string", Required: true},
		Param{Name: "signature", Type: "string", Required: true},
		Param{Name: "publicKey", Type: "string", Required: true})
}

func gcmFromPassphrase(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func parsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("invalid private key PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

func parsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("invalid public key PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return pub, nil
}
