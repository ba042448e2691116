package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// CopyTmpToFinal promotes a tmp object to its final key and removes the tmp
// object. Readers only ever list the final prefix, so a crash between the
// copy and the delete leaves garbage under _tmp/ but never a torn snapshot.
func CopyTmpToFinal(ctx context.Context, client *s3.Client, bucket, tmpKey, finalKey string, logger *zap.Logger) error {
	copySource := bucket + "/" + tmpKey
	if _, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(copySource),
		Key:        aws.String(finalKey),
	}); err != nil {
		return fmt.Errorf("copy object: %w", err)
	}

	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(tmpKey),
	}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			logger.Sugar().Debugw("tmp object already gone", "key", tmpKey)
			return nil
		}
		// The final object landed; a leftover tmp object is not worth
		// failing the run over.
		logger.Sugar().Warnw("delete tmp object failed", "key", tmpKey, "err", err)
	}

	return nil
}

// UploadManifest serializes the manifest and uploads it under the snapshot
// prefix. Returns the object key.
func UploadManifest(ctx context.Context, client *s3.Client, bucket, prefix string, m *Manifest) (string, error) {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	key := strings.TrimSuffix(prefix, "/") + fmt.Sprintf("/snapshot/manifest-%d.json", m.SnapshotTS)

	uploader := manager.NewUploader(client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}

	return key, nil
}
