package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerRequest struct {
	Provider string `json:"provider" validate:"required,provider"`
	Model    string `json:"model" validate:"omitempty,max=100"`
	BaseURL  string `json:"base_url" validate:"omitempty,url"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      providerRequest
		wantFields []string
	}{
		{name: "valid", input: providerRequest{Provider: "gemini"}},
		{name: "valid mixed case", input: providerRequest{Provider: " OpenAI "}},
		{name: "missing provider", input: providerRequest{}, wantFields: []string{"Provider"}},
		{name: "unknown provider", input: providerRequest{Provider: "claude"}, wantFields: []string{"Provider"}},
		{name: "bad url", input: providerRequest{Provider: "openai", BaseURL: "not a url"}, wantFields: []string{"BaseURL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			fields := GetValidationFields(err)
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestValidateStruct_ProviderMessage(t *testing.T) {
	err := ValidateStruct(providerRequest{Provider: "claude"})
	assert.Equal(t, "Provider must be one of: gemini, openai", GetValidationFields(err)["Provider"])
}
