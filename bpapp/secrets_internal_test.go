package bpapp

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type mockSecretReader struct {
	secrets map[string]string
	err     error
}

func (m *mockSecretReader) GetSecretString(_ context.Context, secretID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	secret, ok := m.secrets[secretID]
	if !ok {
		return "", errors.Errorf("secret %q not found", secretID)
	}
	return secret, nil
}

func TestReadSecret(t *testing.T) {
	for _, tt := range []struct {
		name      string
		secrets   map[string]string
		readerErr error
		secretID  string
		jsonPath  string
		want      string
		wantErr   string
	}{
		{
			name:     "raw string secret",
			secrets:  map[string]string{"my-api-key": "secret-key-value"},
			secretID: "my-api-key",
			want:     "secret-key-value",
		},
		{
			name:     "json secret with simple path",
			secrets:  map[string]string{"my-db-creds": `{"database": {"password": "secret123"}}`},
			secretID: "my-db-creds",
			jsonPath: "database.password",
			want:     "secret123",
		},
		{
			name:     "json secret with nested array",
			secrets:  map[string]string{"my-config": `{"items": [{"name": "first"}, {"name": "second"}]}`},
			secretID: "my-config",
			jsonPath: "items.1.name",
			want:     "second",
		},
		{
			name:     "path not found",
			secrets:  map[string]string{"my-secret": `{"foo": "bar"}`},
			secretID: "my-secret",
			jsonPath: "missing.path",
			wantErr:  `secret path "missing.path" not found`,
		},
		{
			name:      "reader error",
			readerErr: errors.New("AWS error"),
			secretID:  "any-secret",
			wantErr:   "AWS error",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			reader := &mockSecretReader{secrets: tt.secrets, err: tt.readerErr}

			got, err := ReadSecret(t.Context(), reader, tt.secretID, tt.jsonPath)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			got, err = SecretKeySource(reader, tt.secretID, tt.jsonPath)(t.Context())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRuntimeSecret(t *testing.T) {
	rt := NewRuntime(BaseEnvironment{}, nil, RuntimeParams{
		SecretReader: &mockSecretReader{secrets: map[string]string{"k": `{"v":"1"}`}},
	})

	got, err := rt.Secret(t.Context(), "k", "v")
	require.NoError(t, err)
	require.Equal(t, "1", got)
}
