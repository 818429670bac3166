// Package mirror copies ingested uploads to an S3-compatible bucket.
package mirror

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads files into Bucket under Prefix.
type S3Mirror struct {
	api    putObjectAPI
	bucket string
	prefix string
}

// NewFromEnv builds an S3Mirror for bucket using the S3_* environment
// variables:
//   - S3_ENDPOINT: host:port or full URL of the S3 endpoint. Empty means AWS.
//   - S3_ACCESS_KEY / S3_SECRET_KEY: static credentials. Empty means the
//     default AWS credential chain.
//   - S3_REGION (default "us-east-1").
//   - S3_DISABLE_TLS (bool; default false).
//   - S3_FORCE_PATH_STYLE (bool; default true).
//   - S3_PREFIX: key prefix inside the bucket (default "uploads").
func NewFromEnv(ctx context.Context, bucket string) (*S3Mirror, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("mirror bucket is required")
	}

	endpoint := strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	prefix, ok := os.LookupEnv("S3_PREFIX")
	if !ok {
		prefix = "uploads"
	}

	disableTLS, _ := strconv.ParseBool(os.Getenv("S3_DISABLE_TLS"))
	forcePathStyle := true
	if v := strings.TrimSpace(os.Getenv("S3_FORCE_PATH_STYLE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			forcePathStyle = parsed
		}
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(endpoint, disableTLS))
		}
	})

	return &S3Mirror{api: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func normalizeEndpoint(endpoint string, disableTLS bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if disableTLS {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, endpoint)
}

// Put uploads r under key with a SHA-256 checksum.
func (m *S3Mirror) Put(ctx context.Context, key string, r io.Reader, size int64, sha256 string) error {
	if m == nil {
		return errors.New("nil mirror")
	}
	checksum, err := encodeSHA256(sha256)
	if err != nil {
		return err
	}

	objectKey := m.objectKey(key)
	_, err = m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            &m.bucket,
		Key:               &objectKey,
		Body:              r,
		ContentLength:     &size,
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    &checksum,
		Metadata: map[string]string{
			"sha256": sha256,
		},
	})
	return err
}

func (m *S3Mirror) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

func encodeSHA256(hexDigest string) (string, error) {
	if hexDigest == "" {
		return "", errors.New("sha256 digest required")
	}
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
