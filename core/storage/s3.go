package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// SignupExport is the durable mirror of one reservation. It carries no
// secrets: the cancellation token and its digest never leave the database.
type SignupExport struct {
	SignupID      string     `json:"signupId"`
	SlotID        string     `json:"slotId"`
	EventPublicID string     `json:"eventPublicId"`
	EventName     string     `json:"eventName"`
	Timezone      string     `json:"timezone"`
	ShiftLabel    string     `json:"shiftLabel"`
	Date          string     `json:"date"` // YYYY-MM-DD
	DayOfWeek     int        `json:"dayOfWeek"`
	SevaName      string     `json:"sevaName"`
	Name          string     `json:"volunteerName"`
	Email         string     `json:"volunteerEmail"`
	Phone         string     `json:"volunteerPhone,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
}

// Key derives the object key purely from identifiers so a reconciliation
// sweep can reconstruct it without reading the object store.
// Layout: events/{publicId}/month={YYYY-MM}/date={YYYY-MM-DD}/slot={slotId}/signup={signupId}.json
func (e SignupExport) Key() string {
	month := e.Date
	if len(month) >= 7 {
		month = e.Date[:7]
	}
	return fmt.Sprintf("events/%s/month=%s/date=%s/slot=%s/signup=%s.json",
		e.EventPublicID, month, e.Date, e.SlotID, e.SignupID)
}

// Exporter mirrors reservations to durable external storage, best-effort.
type Exporter interface {
	Mirror(ctx context.Context, export SignupExport) (string, error)
}

type S3Exporter struct {
	client *s3.Client
	bucket string
}

func NewS3Exporter(cfg config.AWSConfig) (*S3Exporter, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket not configured")
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})

	return &S3Exporter{client: client, bucket: cfg.S3Bucket}, nil
}

func (x *S3Exporter) Mirror(ctx context.Context, export SignupExport) (string, error) {
	key := export.Key()

	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	_, err = x.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(x.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"signup-id":       export.SignupID,
			"event-public-id": export.EventPublicID,
			"status":          export.Status,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	logger.Info("S3Exporter:Mirror", "signup_id", export.SignupID, "key", key)
	return key, nil
}
