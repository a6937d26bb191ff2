package ops

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrInvalidCursor is returned for cursor tokens that cannot be decoded or
// belong to a different query.
var ErrInvalidCursor = errors.New("invalid cursor")

// CursorPosition is the self-contained state of a "next page" token.
type CursorPosition struct {
	Offset int    `json:"offset"`
	Hash   string `json:"hash"`
}

// HashQuery fingerprints everything that determines a result order, so a
// cursor cannot be replayed against another query.
func HashQuery(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte("\n"))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// EncodeCursor renders pos as a base64url token.
func EncodeCursor(pos CursorPosition) (string, error) {
	b, err := json.Marshal(pos)
	if err != nil {
		return "", fmt.Errorf("cursor json: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses tok and checks it was issued for the query hashed as
// hash.
func DecodeCursor(tok, hash string) (CursorPosition, error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return CursorPosition{}, fmt.Errorf("%w: base64 decode error", ErrInvalidCursor)
	}
	var pos CursorPosition
	if err := json.Unmarshal(b, &pos); err != nil {
		return CursorPosition{}, fmt.Errorf("%w: cursor json parse error", ErrInvalidCursor)
	}
	if pos.Offset < 0 {
		return CursorPosition{}, fmt.Errorf("%w: negative offset", ErrInvalidCursor)
	}
	if pos.Hash != hash {
		return CursorPosition{}, fmt.Errorf("%w: issued for a different query", ErrInvalidCursor)
	}
	return pos, nil
}
