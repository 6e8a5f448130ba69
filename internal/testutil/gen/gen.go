// Package gen allows generating of example ID tokens together with
// the key set which verifies them.
//
//	go run ./internal/testutil/gen
package main

import (
	"encoding/json"
	"fmt"
	"os"

	jose "github.com/go-jose/go-jose/v3"

	tu "github.com/zitadel/oidc-core/internal/testutil"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

var custom = map[string]any{
	"foo": "Hello, World!",
	"bar": struct {
		Count int      `json:"count,omitempty"`
		Tags  []string `json:"tags,omitempty"`
	}{
		Count: 22,
		Tags:  []string{"some", "tags"},
	},
}

func main() {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")

	keys := tu.NewKeySet()
	atHash, err := oidc.ClaimHash("access-token", tu.SignatureAlgorithm)
	if err != nil {
		panic(err)
	}
	claims := tu.NewIDTokenClaims(
		tu.ValidIssuer, tu.ValidSubject, tu.ValidAudience,
		tu.ValidExpiration.AddDate(99, 0, 0), tu.ValidAuthTime,
		tu.ValidNonce, tu.ValidACR, tu.ValidAMR, tu.ValidClientID, atHash,
	)
	for k, v := range custom {
		claims.Claims[k] = v
	}
	signed := keys.SignToken(claims)

	fmt.Println("ID token claims:")
	if err := enc.Encode(claims); err != nil {
		panic(err)
	}
	fmt.Printf("signed ID token:\n%s\n", signed)
	fmt.Printf("nested ID token:\n%s\n", keys.EncryptToken(signed))
	fmt.Printf("plain ID token:\n%s\n", tu.PlainToken(claims))

	fmt.Println("verification keys:")
	if err := enc.Encode(jose.JSONWebKeySet{Keys: keys.SignatureKeys()}); err != nil {
		panic(err)
	}
}
