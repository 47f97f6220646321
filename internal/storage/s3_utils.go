package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func (cfg S3ClientConfig) staticCredentials() aws.CredentialsProvider {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
}

func loadAWSConfig(ctx context.Context, region string, creds aws.CredentialsProvider) (aws.Config, error) {
	var opts []func(*aws_config.LoadOptions) error
	if region != "" {
		opts = append(opts, aws_config.WithRegion(region))
	}
	if creds != nil {
		opts = append(opts, aws_config.WithCredentialsProvider(creds))
	}
	return aws_config.LoadDefaultConfig(ctx, opts...)
}

func initializeS3Client(cfg S3ClientConfig) (*s3.Client, error) {
	ctx := context.Background()

	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.staticCredentials())
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	// Without credentials only public buckets are readable.
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		slog.Info("no aws credentials found, using anonymous s3 access")
		awsCfg, err = loadAWSConfig(ctx, cfg.Region, aws.AnonymousCredentials{})
		if err != nil {
			return nil, fmt.Errorf("error loading anonymous aws config: %w", err)
		}
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO and other S3-compatible stores expect path-style addressing.
		o.UsePathStyle = true
	}), nil
}
