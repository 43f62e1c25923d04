package storage

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"math-showcase/config"
)

// snapshotLayout sortiert lexikografisch in zeitlicher Reihenfolge.
const snapshotLayout = "2006-01-02T15-04-05Z"

// ObjectStore ist der Teil der S3-API, den der Publisher braucht.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadFile lädt eine Datei ins S3 hoch.
func UploadFile(ctx context.Context, client ObjectStore, bucket, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if ct := contentType(key); ct != "" {
		input.ContentType = aws.String(ct)
	}
	_, err := client.PutObject(ctx, input)
	return err
}

// Publisher veröffentlicht den Output-Baum als datierten Snapshot.
type Publisher struct {
	Client ObjectStore
	Bucket string
	Prefix string
	Keep   int
}

// NewPublisher übernimmt Bucket, Prefix und Rotation aus der Konfiguration.
func NewPublisher(client ObjectStore, cfg *config.Config) *Publisher {
	return &Publisher{Client: client, Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix, Keep: cfg.KeepSnapshots}
}

// PublishTree lädt alle Dateien unter dir nach <prefix>/snapshots/<ts>/ hoch
// und gibt den Snapshot-Prefix und die Anzahl der Dateien zurück.
func (p *Publisher) PublishTree(ctx context.Context, dir string, now time.Time) (string, int, error) {
	snapshot := snapshotPrefix(p.Prefix, now)
	uploaded := 0
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		key := snapshot + filepath.ToSlash(rel)
		if err := UploadFile(ctx, p.Client, p.Bucket, key, data); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded++
		return nil
	})
	return snapshot, uploaded, err
}

// RotateSnapshots löscht alle Snapshots bis auf die neuesten Keep.
func (p *Publisher) RotateSnapshots(ctx context.Context) ([]string, error) {
	snapshots, err := p.listSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) <= p.Keep {
		log.Printf("Höchstens %d Snapshots vorhanden, keine Rotation nötig.", p.Keep)
		return nil, nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))
	var deleted []string
	for _, snapshot := range snapshots[p.Keep:] {
		log.Printf("Lösche alten Snapshot: %s", snapshot)
		if err := p.deletePrefix(ctx, snapshot); err != nil {
			return deleted, fmt.Errorf("delete snapshot %s: %w", snapshot, err)
		}
		deleted = append(deleted, snapshot)
	}
	return deleted, nil
}

func (p *Publisher) listSnapshots(ctx context.Context) ([]string, error) {
	var snapshots []string
	paginator := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.Bucket),
		Prefix:    aws.String(snapshotsRoot(p.Prefix)),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			snapshots = append(snapshots, aws.ToString(cp.Prefix))
		}
	}
	return snapshots, nil
}

func (p *Publisher) deletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(p.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if _, err := p.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(p.Bucket),
				Key:    obj.Key,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func snapshotsRoot(prefix string) string {
	root := path.Join(strings.Trim(prefix, "/"), "snapshots")
	return strings.TrimPrefix(root, "/") + "/"
}

func snapshotPrefix(prefix string, now time.Time) string {
	return snapshotsRoot(prefix) + now.UTC().Format(snapshotLayout) + "/"
}

func contentType(key string) string {
	if strings.HasSuffix(key, ".json") {
		return "application/json"
	}
	return mime.TypeByExtension(path.Ext(key))
}
