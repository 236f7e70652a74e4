package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var jwtKey []byte

// Claims resolves the caller's wallet address from a presented credential.
type Claims struct {
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

type contextKey string

const walletContextKey contextKey = "wallet_address"

// CallerWallet returns the authenticated wallet address, if any.
func CallerWallet(ctx context.Context) string {
	wallet, _ := ctx.Value(walletContextKey).(string)
	return wallet
}

// InitJWTKey loads the signing key from the configured key dir, generating
// and saving a new one on first boot.
func InitJWTKey() error {
	dir := viper.GetString("jwt_keys_dir")
	keyPath := filepath.Join(dir, "jwt_key")

	encoded, err := os.ReadFile(keyPath)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(encoded))
		if decErr != nil {
			return errors.Wrap(decErr, "decoding JWT key")
		}
		jwtKey = key
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, "reading JWT key")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "creating JWT key dir")
	}
	key := make([]byte, 32) // 256 bits
	if _, err := rand.Read(key); err != nil {
		return errors.Wrap(err, "generating JWT key")
	}
	if err := os.WriteFile(keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return errors.Wrap(err, "saving JWT key")
	}
	jwtKey = key
	return nil
}

// SetJWTKey overrides the signing key. Test helper.
func SetJWTKey(key []byte) {
	jwtKey = key
}

// GenerateJWT issues a token binding the caller to a wallet address.
func GenerateJWT(walletAddress string, ttl time.Duration) (string, error) {
	if len(jwtKey) == 0 {
		return "", errors.New("JWT signing key not available")
	}
	claims := &Claims{
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// JWTMiddleware checks the bearer token and stashes the caller's wallet
// address in the request context. Auth failures abort before any mutation.
func (s *Server) JWTMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: Authorization header missing", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return jwtKey, nil
		})
		if err != nil {
			if validationErr, ok := err.(*jwt.ValidationError); ok &&
				validationErr.Errors&jwt.ValidationErrorExpired != 0 {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		if !token.Valid || claims.WalletAddress == "" {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), walletContextKey, claims.WalletAddress)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
