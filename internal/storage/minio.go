package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
)

// RecordFormatter renders the catalog record archived for a dataset
type RecordFormatter interface {
	FormatToDCAT(ds *models.Dataset) *models.DCATDataset
}

// MinIOStorage archives the catalog record of every published dataset
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	publicEndpoint string
	formatter      RecordFormatter
}

// NewMinIOStorage creates a new MinIO manifest archive
func NewMinIOStorage(endpoint, publicEndpoint, accessKey, secretKey, bucketName string, useSSL bool, formatter RecordFormatter) (*MinIOStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}
	publicEndpoint = strings.TrimSuffix(strings.TrimSpace(publicEndpoint), "/")

	storage := &MinIOStorage{
		client:         minioClient,
		bucketName:     bucketName,
		publicEndpoint: publicEndpoint,
		formatter:      formatter,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Warn().Err(err).Msgf("Failed to check bucket existence for %s (will continue)", bucketName)
	} else if !exists {
		if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Error().Err(err).Msgf("Failed to create bucket %s", bucketName)
		} else {
			log.Info().Msgf("Bucket %s created successfully", bucketName)
		}
	}

	log.Info().
		Str("endpoint", endpoint).
		Str("public_endpoint", publicEndpoint).
		Str("bucket", bucketName).
		Msg("MinIO manifest archive initialized")

	return storage, nil
}

// ManifestKey is the object key of a dataset's archived record
func ManifestKey(datasetUUID string) string {
	return fmt.Sprintf("manifests/%s.json", datasetUUID)
}

// NotifyPublished uploads the dataset's catalog record
func (s *MinIOStorage) NotifyPublished(ctx context.Context, ds *models.Dataset) error {
	body, err := json.MarshalIndent(s.formatter.FormatToDCAT(ds), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	key := ManifestKey(ds.UUID)
	_, err = s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		bytes.NewReader(body),
		int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/ld+json"},
	)
	if err != nil {
		return fmt.Errorf("failed to upload manifest: %w", err)
	}

	log.Info().
		Str("uuid", ds.UUID).
		Str("key", key).
		Str("url", s.ManifestURL(ds.UUID)).
		Msg("Manifest archived")

	return nil
}

// ManifestURL returns the public URL of a dataset's archived record
func (s *MinIOStorage) ManifestURL(datasetUUID string) string {
	return manifestURL(s.publicEndpoint, s.bucketName, datasetUUID)
}

func manifestURL(endpoint, bucket, datasetUUID string) string {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return fmt.Sprintf("%s/%s/%s", endpoint, bucket, ManifestKey(datasetUUID))
}

// HealthCheck verifies the MinIO connection
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}
