// Package archive stores raw settlement receipts in object storage for
// later audits and disputed-outcome investigation.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/raigotchi/petops/internal/gateway"
)

// Archiver uploads one settlement receipt per orchestrated action.
type Archiver interface {
	ArchiveReceipt(ctx context.Context, actionID uuid.UUID, rec gateway.SettlementRecord) (string, error)
}

// S3Archiver writes receipts to paths like:
//
//	s3://<bucket>/<prefix>/receipts/YYYY/MM/DD/<actionID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3Archiver) ArchiveReceipt(ctx context.Context, actionID uuid.UUID, rec gateway.SettlementRecord) (string, error) {
	body, err := json.Marshal(struct {
		ActionID uuid.UUID                `json:"actionId"`
		Receipt  gateway.SettlementRecord `json:"receipt"`
	}{ActionID: actionID, Receipt: rec})
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}

	ts := rec.SettledAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	year, month, day := ts.Date()
	key := path.Join(s.prefix, "receipts",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", actionID),
	)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return key, nil
}
