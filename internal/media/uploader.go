// Package media stores user avatars in S3 and hands back public URLs.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Uploader stores a data-URI image and returns a public URL.
type Uploader interface {
	UploadDataURI(ctx context.Context, dataURI, prefix string) (string, error)
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client     s3API
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewS3Uploader loads the ambient AWS credentials for the given region.
func NewS3Uploader(ctx context.Context, region, bucket, publicBase string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	return &S3Uploader{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}, nil
}

// UploadDataURI decodes a "data:<mime>;base64,<data>" image and uploads it
// under a unique key.
func (u *S3Uploader) UploadDataURI(ctx context.Context, dataURI, prefix string) (string, error) {
	meta, data, ok := strings.Cut(dataURI, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return "", fmt.Errorf("media: not a data uri")
	}
	contentType := strings.TrimPrefix(meta, "data:")
	contentType, _, _ = strings.Cut(contentType, ";")

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("media: decode image: %w", err)
	}

	key := fmt.Sprintf("avatars/%s-%d%s", prefix, u.now().UnixNano(), extensionFor(contentType))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("media: upload: %w", err)
	}
	return u.publicBase + "/" + key, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	if _, subtype, ok := strings.Cut(contentType, "/"); ok {
		return "." + subtype
	}
	return ""
}
