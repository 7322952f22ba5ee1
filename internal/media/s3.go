package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyImage       = errors.New("media: empty image")
	ErrUnsupportedImage = errors.New("media: unsupported image type")
)

// AllowedContentTypes lists the image types accepted for product pictures.
var AllowedContentTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the S3 client and the public URL of uploaded objects.
type S3Options struct {
	Region          string
	Endpoint        string // custom endpoint, e.g. LocalStack or MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	CDNDomain       string
}

// NewS3Client builds an S3 client from opts, using path-style addressing when a
// custom endpoint is set.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfgOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" || opts.SecretAccessKey != "" {
		cfgOpts = append(cfgOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("media: failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// S3Uploader stores product images in a bucket and returns their public URL.
type S3Uploader struct {
	client    PutObjectAPI
	bucket    string
	prefix    string
	endpoint  string
	cdnDomain string
}

// NewS3Uploader creates an uploader writing to opts.Bucket under opts.Prefix.
func NewS3Uploader(client PutObjectAPI, opts S3Options) *S3Uploader {
	return &S3Uploader{
		client:    client,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		endpoint:  opts.Endpoint,
		cdnDomain: opts.CDNDomain,
	}
}

// DetectImage sniffs data and returns its content type and file extension. Only the
// types in AllowedContentTypes are accepted.
func DetectImage(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrEmptyImage
	}
	mtype := mimetype.Detect(data)
	for _, allowed := range AllowedContentTypes {
		if mtype.Is(allowed) {
			return allowed, mtype.Extension(), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mtype.String())
}

// Upload stores data under a fresh key and returns the object's public URL. The
// content type is sniffed from data; declaredType is only logged when it disagrees.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, declaredType string) (string, error) {
	contentType, ext, err := DetectImage(data)
	if err != nil {
		return "", err
	}
	if declaredType != "" && declaredType != contentType {
		zap.L().Debug("Declared image type differs from sniffed type",
			zap.String("declared", declaredType), zap.String("detected", contentType))
	}

	key := fmt.Sprintf("%sproduct_img_%s%s", u.prefix, uuid.NewString(), ext)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("media: failed to upload to s3: %w", err)
	}
	return u.PublicURL(key), nil
}

// PublicURL returns the URL a stored key is served from.
func (u *S3Uploader) PublicURL(key string) string {
	switch {
	case u.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", strings.TrimRight(u.cdnDomain, "/"), key)
	case u.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.endpoint, "/"), u.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key)
	}
}
