package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadAWSConfig loads the default AWS config. When AWS_ENDPOINT (or the
// service-specific AWS_SQS_ENDPOINT) is set, every client built from the
// returned config targets that URL, which is how LocalStack is wired in dev.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions()...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

func loadOptions() []func(*config.LoadOptions) error {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-west-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	endpoint := os.Getenv("AWS_SQS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("AWS_ENDPOINT")
	}
	if endpoint == "" {
		return opts
	}

	opts = append(opts, config.WithBaseEndpoint(endpoint))

	// LocalStack accepts any key pair.
	accessKey, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" && secret == "" {
		accessKey, secret = "test", "test"
	}
	opts = append(opts, config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(accessKey, secret, ""),
	))
	return opts
}
