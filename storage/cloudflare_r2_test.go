package storage

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://files.example.com/", "questions/a.png", "https://files.example.com/questions/a.png"},
		{"https://files.example.com/bucket/", "/questions/a.png", "https://files.example.com/bucket/questions/a.png"},
		{"https://files.example.com/", "", ""},
	}
	for _, tt := range tests {
		base, err := url.Parse(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, publicURL(base, tt.key))
	}
}

func TestNewCloudflareR2Store_RequiresAllFields(t *testing.T) {
	_, err := NewCloudflareR2Store(context.Background(), CloudflareR2Config{AccountID: "acc"}, nil)
	assert.Error(t, err)
}

func TestNewCloudflareR2Store_NormalizesBase(t *testing.T) {
	store, err := NewCloudflareR2Store(context.Background(), CloudflareR2Config{
		AccountID:       "acc",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "bucket",
		PublicBaseURL:   "https://files.example.com/attachments",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/attachments/q/1.png", store.GetPublicURL("q/1.png"))
}
