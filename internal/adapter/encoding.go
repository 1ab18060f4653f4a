package adapter

import "encoding/base64"

// Base64 defines an interface for Base64 operations to enable mocking
//
//go:generate mockgen -source=encoding.go -destination=../mocks/encoding.go -package=mocks -mock_names=Base64=MockBase64
type Base64 interface {
	Decode(data string) ([]byte, error)
}

type RealBase64 struct{}

func NewBase64() Base64 {
	return &RealBase64{}
}

// Decode accepts padded and unpadded standard encodings, as found in data: URIs
func (b *RealBase64) Decode(data string) ([]byte, error) {
	if out, err := base64.StdEncoding.DecodeString(data); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(data)
}
