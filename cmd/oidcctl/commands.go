package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/sirupsen/logrus"

	"github.com/zitadel/oidc-core/cmd/oidcctl/config"
	"github.com/zitadel/oidc-core/pkg/client"
	"github.com/zitadel/oidc-core/pkg/client/rp"
	"github.com/zitadel/oidc-core/pkg/crypto"
	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

var ErrMissingConfig = errors.New("missing configuration")

// parseFailure is printed for a request which could not be parsed.
type parseFailure struct {
	Error        string            `json:"error"`
	Description  string            `json:"error_description,omitempty"`
	ResponseMode oidc.ResponseMode `json:"response_mode,omitempty"`
	ClientID     oidc.ClientID     `json:"client_id,omitempty"`
	RedirectURI  string            `json:"redirect_uri,omitempty"`
	State        oidc.State        `json:"state,omitempty"`
	Redirectable bool              `json:"redirectable"`
}

func parseCommand(w io.Writer, uri string) error {
	authReq, err := oidc.ParseAuthRequestURI(uri)
	if err == nil {
		return printJSON(w, authReq)
	}
	var parseErr *oidc.ParseError
	if !errors.As(err, &parseErr) {
		return err
	}
	failure := parseFailure{
		Error:        string(oidc.ErrInvalidRequest().ErrorType),
		Description:  parseErr.Message,
		ResponseMode: parseErr.ResponseMode,
		ClientID:     parseErr.ClientID,
		State:        parseErr.State,
		Redirectable: parseErr.Redirectable(),
	}
	if parseErr.ErrorObject != nil {
		failure.Error = string(parseErr.ErrorObject.ErrorType)
		failure.Description = parseErr.ErrorObject.Description
	}
	if parseErr.RedirectURI != nil {
		failure.RedirectURI = parseErr.RedirectURI.String()
	}
	if printErr := printJSON(w, failure); printErr != nil {
		return printErr
	}
	return err
}

func claimsCommand(w io.Writer, responseType string) error {
	rt, err := oidc.ParseResponseType(responseType)
	if err != nil {
		return err
	}
	return printJSON(w, oidc.ResolveRequiredClaims(rt))
}

func verifyCommand(ctx context.Context, w io.Writer, cfg *config.Config, token, nonce string) error {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return fmt.Errorf("%w: issuer and client ID are required to verify a token", ErrMissingConfig)
	}
	jwksURI := cfg.JWKSURI
	if jwksURI == "" {
		discovery, err := client.Discover(ctx, cfg.Issuer, httphelper.DefaultHTTPClient)
		if err != nil {
			return err
		}
		jwksURI = discovery.JwksURI
		logrus.WithField("jwks_uri", jwksURI).Debug("discovered key set")
	}

	opts := []rp.VerifierOption{rp.WithMaxClockSkew(cfg.MaxClockSkew)}
	if len(cfg.SigningAlgs) > 0 {
		opts = append(opts, rp.WithSupportedSigningAlgorithms(cfg.SigningAlgs...))
	}
	if nonce != "" {
		opts = append(opts, rp.WithNonce(func(context.Context) string { return nonce }))
	}
	keySet := rp.NewRemoteKeySet(httphelper.DefaultHTTPClient, jwksURI)
	verifier := rp.NewIDTokenVerifier(cfg.Issuer, cfg.ClientID, keySet, opts...)

	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token, verifier)
	if err != nil {
		return err
	}
	return printJSON(w, claims)
}

func signCommand(w io.Writer, keyFile, keyID, claimsFile string) error {
	if keyFile == "" {
		return fmt.Errorf("%w: a private key is required to sign", ErrMissingConfig)
	}
	pemKey, err := os.ReadFile(keyFile)
	if err != nil {
		return err
	}
	key, alg, err := crypto.BytesToPrivateKey(pemKey)
	if err != nil {
		return err
	}
	claims, err := os.ReadFile(claimsFile)
	if err != nil {
		return err
	}
	if !json.Valid(claims) {
		return fmt.Errorf("%w: %s is not valid JSON", oidc.ErrParse, claimsFile)
	}
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: alg,
		Key:       jose.JSONWebKey{Key: key, KeyID: keyID},
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return err
	}
	token, err := crypto.SignPayload(claims, signer)
	if err != nil {
		return err
	}
	logrus.WithField("alg", alg).Debug("signed token")
	_, err = fmt.Fprintln(w, token)
	return err
}

func clientCommand(w io.Writer, metadataFile string) error {
	data, err := os.ReadFile(metadataFile)
	if err != nil {
		return err
	}
	metadata, err := oidc.ParseClientMetadata(data)
	if err != nil {
		return err
	}
	if len(metadata.Extensions) > 0 {
		logrus.WithField("count", len(metadata.Extensions)).Debug("extension fields")
	}
	metadata.ApplyDefaults()
	return printJSON(w, metadata)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
