package bpapp

import (
	"context"

	"github.com/advdv/bpipe/interceptor"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// SecretReader abstracts secret retrieval for testability and flexibility.
type SecretReader interface {
	GetSecretString(ctx context.Context, secretID string) (string, error)
}

// AWSSecretReader implements SecretReader using AWS Secrets Manager caching client.
type AWSSecretReader struct {
	cache *secretcache.Cache
}

// NewAWSSecretReader creates a new AWSSecretReader using the provided AWS config.
func NewAWSSecretReader(cfg aws.Config) (*AWSSecretReader, error) {
	client := secretsmanager.NewFromConfig(cfg)
	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create secret cache")
	}
	return &AWSSecretReader{cache: cache}, nil
}

// GetSecretString retrieves a secret value from AWS Secrets Manager with caching.
func (r *AWSSecretReader) GetSecretString(ctx context.Context, secretID string) (string, error) {
	secret, err := r.cache.GetSecretStringWithContext(ctx, secretID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get secret %q", secretID)
	}
	return secret, nil
}

// ReadSecret reads a secret and, when jsonPath is not empty, extracts the value at that gjson
// path.
func ReadSecret(ctx context.Context, reader SecretReader, secretID, jsonPath string) (string, error) {
	secret, err := reader.GetSecretString(ctx, secretID)
	if err != nil {
		return "", err
	}

	if jsonPath == "" {
		return secret, nil
	}

	result := gjson.Get(secret, jsonPath)
	if !result.Exists() {
		return "", errors.Errorf("secret path %q not found in secret %q", jsonPath, secretID)
	}

	return result.String(), nil
}

// SecretKeySource feeds [interceptor.APIKey] from a secret. Rotation is picked up as soon as the
// reader's cache refreshes.
func SecretKeySource(reader SecretReader, secretID, jsonPath string) interceptor.KeySource {
	return func(ctx context.Context) (string, error) {
		return ReadSecret(ctx, reader, secretID, jsonPath)
	}
}
