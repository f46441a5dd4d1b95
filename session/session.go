package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound means no live session exists for the given id.  Expired
	// sessions report the same error.
	ErrNotFound = errors.New("session not found")
)

// Data is the payload stored per authenticated session.
type Data struct {
	User        magda.User `json:"user"`
	Tokens      oidc.Token `json:"tokens"`
	ProviderKey string     `json:"providerKey"`

	// LogoutURL is set when the provider supports RP-initiated logout; it
	// already carries the id_token_hint from this session's sign-in.
	LogoutURL string `json:"logoutUrl,omitempty"`
}

// Codec serializes session payloads for storage.
type Codec interface {
	Encode(*Data) ([]byte, error)
	Decode([]byte) (*Data, error)
}

// JSONCodec stores payloads as JSON, matching what the host application's
// own session middleware writes into the shared session table.
type JSONCodec struct{}

func (JSONCodec) Encode(data *Data) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("encode session: nil data: %w", ErrInvalidParameter)
	}
	return json.Marshal(data)
}

func (JSONCodec) Decode(raw []byte) (*Data, error) {
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}
