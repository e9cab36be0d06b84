package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/Geotechcompany/synovora/configs"
)

type R2Service struct {
	config *cfg.Config
}

func NewR2Service(cfg *cfg.Config) *R2Service {
	return &R2Service{config: cfg}
}

func (r *R2Service) Configured() bool {
	return r.config.R2.AccountID != "" && r.config.R2.AccessKey != "" &&
		r.config.R2.SecretKey != "" && r.config.R2.BucketName != ""
}

func (r *R2Service) R2Client() *s3.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		log.Fatal(err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	})
}

// UploadToR2 stores the object and returns its public URL when a public base
// URL is configured, otherwise an empty string.
func (r *R2Service) UploadToR2(ctx context.Context, key string, file []byte, filetype string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(filetype),
	}

	r2Client := r.R2Client()

	_, err := r2Client.PutObject(ctx, input)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if base := r.config.R2.PublicBaseURL; base != "" {
		return strings.TrimRight(base, "/") + "/" + key, nil
	}
	return "", nil
}

func (r *R2Service) GetFromR2(ctx context.Context, key string) ([]byte, error) {
	r2Client := r.R2Client()

	out, err := r2Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return buf.Bytes(), nil
}
