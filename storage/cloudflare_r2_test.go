package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	objects map[string]bool
	deleted []string
	headErr error
}

func (f *fakeObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if !f.objects[*in.Key] {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Key)
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(t *testing.T, api objectAPI, base string) *cloudflareR2Store {
	t.Helper()
	u, err := parseBaseURL(base)
	require.NoError(t, err)
	return newCloudflareR2Store(api, "prizes", u, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGetPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "prizes/1.png", "https://cdn.example.com/prizes/1.png"},
		{"https://cdn.example.com/", "/prizes/1.png", "https://cdn.example.com/prizes/1.png"},
		{"https://cdn.example.com/assets", "prizes/1.png", "https://cdn.example.com/assets/prizes/1.png"},
		{"https://cdn.example.com", "", ""},
	}
	for _, tt := range tests {
		s := newTestStore(t, &fakeObjectAPI{}, tt.base)
		assert.Equal(t, tt.want, s.GetPublicURL(tt.key), "base=%s key=%s", tt.base, tt.key)
	}
}

func TestParseBaseURLRejectsRelative(t *testing.T) {
	_, err := parseBaseURL("cdn.example.com/assets")
	assert.Error(t, err)
}

func TestExistsAndDelete(t *testing.T) {
	api := &fakeObjectAPI{objects: map[string]bool{"prizes/ham.png": true}}
	s := newTestStore(t, api, "https://cdn.example.com")
	ctx := context.Background()

	ok, err := s.Exists(ctx, "prizes/ham.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "prizes/missing.png")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "prizes/ham.png"))
	assert.Equal(t, []string{"prizes/ham.png"}, api.deleted)
}

func TestExistsPropagatesErrors(t *testing.T) {
	s := newTestStore(t, &fakeObjectAPI{headErr: errors.New("boom")}, "https://cdn.example.com")
	_, err := s.Exists(context.Background(), "k")
	assert.Error(t, err)
}
