package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ArchivePrefix is the key prefix raw messages are stored under.
const ArchivePrefix = "raw/"

// S3Archive stores raw messages so that mails whose extraction failed can
// be replayed later.
type S3Archive struct {
	svc    *s3.Client
	bucket string
	now    func() time.Time
}

func NewS3Archive(ctx context.Context, region, bucket string) (*S3Archive, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &S3Archive{
		svc:    s3.NewFromConfig(cfg),
		bucket: bucket,
		now:    time.Now,
	}, nil
}

// ArchiveKey is raw/YYYY/MM/DD/<unix nanos>-<uid>.eml.
func ArchiveKey(at time.Time, uid uint32) string {
	at = at.UTC()
	return ArchivePrefix + at.Format("2006/01/02/") +
		strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(uint64(uid), 10) + ".eml"
}

func (a *S3Archive) ArchiveMessage(ctx context.Context, uid uint32, raw []byte) error {
	key := ArchiveKey(a.now(), uid)
	_, err := a.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("message/rfc822"),
		Metadata: map[string]string{
			"imap-uid": strconv.FormatUint(uint64(uid), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("bucket", a.bucket).Str("key", key).Msg("raw message archived")
	return nil
}

// List returns the keys under prefix.
func (a *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(a.svc, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (a *S3Archive) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := a.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}
	return data, nil
}

// UIDFromMetadata returns the IMAP uid recorded with an archived message.
func (a *S3Archive) UIDFromMetadata(ctx context.Context, key string) (uint32, error) {
	head, err := a.svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to head S3 object: %w", err)
	}
	uid, err := strconv.ParseUint(head.Metadata["imap-uid"], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("object %s has no uid: %w", key, err)
	}
	return uint32(uid), nil
}
