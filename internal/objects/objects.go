// Package objects reaches the provider's S3-compatible object storage
// and its notification service with per-user credentials. It exists
// for teardown: objects users own buckets and topics that the main API
// does not track, and those must be gone before the user itself can be
// deleted.
package objects

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
)

// Session bundles the storage and notification clients for one user's
// credentials against one zone's endpoint.
type Session struct {
	s3  *s3.Client
	sns *sns.Client
}

// NewSession opens a session against the given endpoint using static
// per-user credentials.
func NewSession(ctx context.Context, endpoint, accessKey, secretKey string) (*Session, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion("default"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	return &Session{
		s3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}),
		sns: sns.NewFromConfig(cfg, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
	}, nil
}

// Ready reports whether the credentials are usable yet. Freshly issued
// keys take a moment to propagate and are rejected until then.
func (s *Session) Ready(ctx context.Context) (bool, error) {
	_, err := s.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err == nil {
		return true, nil
	}

	if isCredentialsNotReady(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to list buckets: %w", err)
}

// DeleteAllBuckets empties and deletes every bucket owned by the
// session's credentials.
func (s *Session) DeleteAllBuckets(ctx context.Context) error {
	out, err := s.s3.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return fmt.Errorf("failed to list buckets: %w", err)
	}

	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)

		if err := s.emptyBucket(ctx, name); err != nil {
			return fmt.Errorf("failed to empty bucket %s: %w", name, err)
		}

		_, err := s.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: bucket.Name})
		if err != nil && !isNoSuchBucket(err) {
			return fmt.Errorf("failed to delete bucket %s: %w", name, err)
		}
	}

	return nil
}

// emptyBucket deletes every object in the bucket, in batches.
func (s *Session) emptyBucket(ctx context.Context, name string) error {
	paginator := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(name),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}

		if len(page.Contents) == 0 {
			continue
		}

		identifiers := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, object := range page.Contents {
			identifiers = append(identifiers, s3types.ObjectIdentifier{Key: object.Key})
		}

		_, err = s.s3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
	}

	return nil
}

// DeleteTopics deletes every notification topic in the account. Each
// topic's ARN must match the given naming convention; anything else in
// the account is refused rather than deleted.
func (s *Session) DeleteTopics(ctx context.Context, valid *regexp.Regexp) error {
	var next *string

	for {
		out, err := s.sns.ListTopics(ctx, &sns.ListTopicsInput{NextToken: next})
		if err != nil {
			return fmt.Errorf("failed to list topics: %w", err)
		}

		for _, topic := range out.Topics {
			arn := aws.ToString(topic.TopicArn)

			if !valid.MatchString(arn) {
				return fmt.Errorf("refusing to delete topic with unexpected ARN %q", arn)
			}

			_, err := s.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: topic.TopicArn})
			if err != nil {
				return fmt.Errorf("failed to delete topic %s: %w", arn, err)
			}
		}

		if out.NextToken == nil {
			return nil
		}
		next = out.NextToken
	}
}

// isCredentialsNotReady matches the rejections seen while freshly
// issued keys are still propagating.
func isCredentialsNotReady(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "InvalidAccessKeyId", "AccessDenied", "SignatureDoesNotMatch":
		return true
	}
	return false
}

func isNoSuchBucket(err error) bool {
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket"
}
