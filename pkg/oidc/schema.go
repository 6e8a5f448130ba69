package oidc

import (
	"net/url"

	"github.com/zitadel/schema"
)

var (
	encoder = schema.NewEncoder()

	decoder = func() *schema.Decoder {
		d := schema.NewDecoder()
		d.IgnoreUnknownKeys(true)
		return d
	}()
)

func encodeForm(src any) (url.Values, error) {
	values := make(url.Values)
	if err := encoder.Encode(src, values); err != nil {
		return nil, err
	}
	return values, nil
}

func decodeForm(dst any, values url.Values) error {
	return decoder.Decode(dst, values)
}
