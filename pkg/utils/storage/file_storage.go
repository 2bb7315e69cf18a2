package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"peiplan_backend/pkg/utils/image"
)

var (
	s3Client   *s3.Client
	bucketName = "peiplan-uploads"
	region     = "sa-east-1"
)

func InitStorage() error {
	if v := os.Getenv("S3_BUCKET"); v != "" {
		bucketName = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		region = v
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %v", err)
	}

	s3Client = s3.NewFromConfig(cfg)
	return nil
}

// UploadAvatar stores a profile avatar under avatars/<profile_id>/.
func UploadAvatar(file *multipart.FileHeader, profileID uint) (string, error) {
	return upload(file, fmt.Sprintf("avatars/%d", profileID))
}

// UploadStudentPhoto stores a student photo under students/<student_id>/.
func UploadStudentPhoto(file *multipart.FileHeader, studentID uint) (string, error) {
	return upload(file, fmt.Sprintf("students/%d", studentID))
}

func upload(file *multipart.FileHeader, prefix string) (string, error) {
	buf, contentType, err := image.ProcessImage(file)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(file.Filename)
	fileName := fmt.Sprintf("%s/%d-%s%s",
		prefix,
		time.Now().UnixNano(),
		uuid.New().String(),
		ext,
	)

	_, err = s3Client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload to S3: %v", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucketName, region, fileName), nil
}

// DeleteFile removes an uploaded object given its public URL.
func DeleteFile(fileURL string) error {
	parts := strings.Split(fileURL, "/")
	if len(parts) < 4 {
		return fmt.Errorf("invalid file URL: %s", fileURL)
	}
	key := strings.Join(parts[3:], "/")

	_, err := s3Client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	return err
}
