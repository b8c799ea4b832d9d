// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/config"
)

// StorageService uploads RFQ line-item attachments (spec sheets, drawings)
// to S3. Without AWS credentials it degrades to a no-op suitable for local
// development.
type StorageService struct {
	s3Client *s3.S3
	cfg      *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		return &StorageService{cfg: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		cfg:      cfg,
	}, nil
}

func (s *StorageService) UploadAttachment(file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	return s.upload(file, header, UploadOptions{
		Folder:       "rfq-attachments",
		MaxSize:      10 << 20, // 10 MB
		AllowedTypes: []string{".pdf", ".png", ".jpg", ".jpeg", ".xlsx", ".csv", ".dwg"},
	})
}

func (s *StorageService) upload(file multipart.File, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	if options.MaxSize > 0 && header.Size > options.MaxSize {
		return nil, apperrors.Validation("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, options.MaxSize)
	}

	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, apperrors.Validation("file type %s is not allowed", fileExt)
		}
	}

	key := s.generateKey(header.Filename, options.Folder)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if s == nil || s.s3Client == nil {
		// Local development: nothing is persisted, callers still get a key.
		return &UploadResult{
			Key:      key,
			Size:     header.Size,
			MimeType: header.Header.Get("Content-Type"),
		}, nil
	}

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AWS.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String(header.Header.Get("Content-Type")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.AWS.S3Bucket, s.cfg.AWS.Region, key)
	if s.cfg.AWS.CloudFrontURL != "" {
		url = fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.AWS.CloudFrontURL, "/"), key)
	}

	return &UploadResult{
		URL:      url,
		Key:      key,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}

// PresignDownload returns a short-lived URL for a stored attachment.
func (s *StorageService) PresignDownload(key string, expiry time.Duration) (string, error) {
	if s == nil || s.s3Client == nil {
		return "", fmt.Errorf("storage is not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return url, nil
}

func (s *StorageService) generateKey(filename, folder string) string {
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s/%s/%s%s", folder, time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)
}
