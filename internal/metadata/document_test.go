package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace-subgraph/internal/metadata"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expected    *metadata.Document
		expectedErr error
	}{
		{
			name: "object with attributes",
			payload: `{
				"name": "Smol Brain #1",
				"description": "Smol Brains",
				"image": "https://gateway.pinata.cloud/ipfs/QmImage/1.png",
				"attributes": [
					{"trait_type": "Head Size", "value": 3},
					{"trait_type": "Background", "value": "Blue"},
					"ignored",
					{"trait_type": "IQ", "value": 12.9}
				]
			}`,
			expected: &metadata.Document{
				Name:          "Smol Brain #1",
				Description:   "Smol Brains",
				Image:         "https://gateway.pinata.cloud/ipfs/QmImage/1.png",
				HasAttributes: true,
				Traits: []metadata.Trait{
					{Name: "Head Size", Value: "3"},
					{Name: "Background", Value: "Blue"},
					{Name: "IQ", Value: "12"},
				},
			},
		},
		{
			name:    "single element array is unwrapped",
			payload: `[{"name": "Extra Life #80", "attributes": []}]`,
			expected: &metadata.Document{
				Name:          "Extra Life #80",
				HasAttributes: true,
			},
		},
		{
			name:    "non-string fields default to empty",
			payload: `{"name": 7, "description": null, "attributes": {"trait_type": "x"}}`,
			expected: &metadata.Document{
				HasAttributes: false,
			},
		},
		{
			name:    "missing trait fields default to empty",
			payload: `{"attributes": [{"value": true}]}`,
			expected: &metadata.Document{
				HasAttributes: true,
				Traits:        []metadata.Trait{{Name: "", Value: ""}},
			},
		},
		{
			name:        "invalid json",
			payload:     `{"name": `,
			expectedErr: metadata.ErrMalformedDocument,
		},
		{
			name:        "scalar payload",
			payload:     `"just a string"`,
			expectedErr: metadata.ErrMalformedDocument,
		},
		{
			name:        "empty array",
			payload:     `[]`,
			expectedErr: metadata.ErrMalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := metadata.Decode([]byte(tt.payload))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, doc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, doc)
		})
	}
}
