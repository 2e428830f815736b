// Package aws implements the provider gateway on the AWS SDK v2. One
// gateway is bound to one account and region; costs come from Cost
// Explorer, utilization from CloudWatch.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/frugalcloud/sweeper/providers"
	"github.com/frugalcloud/sweeper/types"
)

func init() {
	providers.Register("aws", NewGateway)
}

// Gateway talks to one AWS account in one region.
type Gateway struct {
	accountID string
	region    string

	ec2Client  *ec2.Client
	s3Client   *s3.Client
	rdsClient  *rds.Client
	cwClient   *cloudwatch.Client
	costClient *costexplorer.Client
}

// NewGateway loads the SDK config, preferring static credentials from
// the directory over the ambient chain, and resolves the account id via
// STS.
func NewGateway(ctx context.Context, env types.Environment, creds types.Credentials) (providers.Gateway, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.Region),
	}
	if creds.AccessKeyID != "" && creds.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretKey, creds.SessionToken)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller identity: %w", err)
	}

	return &Gateway{
		accountID:  awssdk.ToString(identity.Account),
		region:     cfg.Region,
		ec2Client:  ec2.NewFromConfig(cfg),
		s3Client:   s3.NewFromConfig(cfg),
		rdsClient:  rds.NewFromConfig(cfg),
		cwClient:   cloudwatch.NewFromConfig(cfg),
		costClient: costexplorer.NewFromConfig(cfg),
	}, nil
}

func (g *Gateway) Name() string        { return "aws" }
func (g *Gateway) AccountUnit() string { return g.accountID }
