package avatar

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	// PublicURL prefixes object keys in returned URLs. Defaults to
	// BaseEndpoint/Bucket.
	PublicURL string
}

type objectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Store uploads avatars to an S3 compatible bucket.
type S3Store struct {
	cfg    S3Config
	client objectClient
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{cfg: cfg, client: client}, nil
}

func (s *S3Store) Save(ctx context.Context, userID string, up Upload) (string, error) {
	if err := Validate(up); err != nil {
		return "", err
	}
	src, err := up.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := objectKey(userID, up)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentType:   aws.String(up.ContentType),
		ContentLength: aws.Int64(up.Size),
	})
	if err != nil {
		log.Println("[ERROR] Failed to upload avatar:", err)
		return "", err
	}
	log.Println("[SUCCESS] Avatar uploaded:", key)
	return s.objectURL(key), nil
}

func (s *S3Store) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.objectURL(""))
	if !ok || key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Println("[ERROR] Failed to delete avatar:", err)
		return err
	}
	return nil
}

func (s *S3Store) objectURL(key string) string {
	base := s.cfg.PublicURL
	if base == "" {
		endpoint := s.cfg.BaseEndpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", s.cfg.Region)
		}
		base = strings.TrimRight(endpoint, "/") + "/" + s.cfg.Bucket
	}
	return strings.TrimRight(base, "/") + "/" + key
}
