package awssm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver reads connection strings and webhook urls out of AWS Secrets Manager.
type Resolver struct {
	api secretsAPI
}

func New(ctx context.Context, region string) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return newWithAPI(secretsmanager.NewFromConfig(cfg)), nil
}

func newWithAPI(api secretsAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve returns the secret string. A secret id of the form "name#key" treats
// the secret as a JSON object and returns the string stored under key.
func (r *Resolver) Resolve(ctx context.Context, secretID string) (string, error) {
	name, key := splitKey(secretID)
	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", errors.Wrapf(err, "get secret %s", name)
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", errors.Errorf("secret %s has no string value", name)
	}
	if key == "" {
		return value, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", errors.Wrapf(err, "secret %s is not a json object", name)
	}
	v, ok := fields[key].(string)
	if !ok || v == "" {
		return "", errors.Errorf("secret %s has no string key %q", name, key)
	}
	return v, nil
}

func splitKey(secretID string) (string, string) {
	if i := strings.LastIndex(secretID, "#"); i >= 0 {
		return secretID[:i], secretID[i+1:]
	}
	return secretID, ""
}
