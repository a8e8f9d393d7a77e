package config

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const DefaultRegion = "us-east-1" // Default region if not specified in scan scope

// LoadAWS resolves AWS credentials and region for the scan scope. Profile
// and region are both optional; the default credential chain covers the
// usual execution environments.
func LoadAWS(ctx context.Context, profile, region string) (awssdk.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithDefaultRegion(DefaultRegion),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	// Test the credentials
	_, err = awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("invalid AWS credentials: %w", err)
	}

	return awsCfg, nil
}
