package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tandem/internal/clock"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/logging"
	sc "github.com/dmitrijs2005/tandem/internal/server/config"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const auditArchiveBatch = 500

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// SweepStats summarizes one retention pass.
type SweepStats struct {
	IdempotencyPruned int64
	AuditArchived     int
	ArchiveKeys       []string
}

// RetentionService prunes idempotency records past their retention window
// and moves old audit entries to object storage.
type RetentionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	clock       clock.Clock
	log         logging.Logger
}

func NewRetentionService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, clk clock.Clock, log logging.Logger) *RetentionService {
	return &RetentionService{db: db, repomanager: m, config: cfg, clock: clk, log: log.With("module", "retention")}
}

// ArchiveKey returns the object key for an audit archive written at t.
func ArchiveKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%v.jsonl", t.Year(), t.Month(), t.Day(), uuid.New())
}

func (s *RetentionService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Sweep runs one retention pass.
func (s *RetentionService) Sweep(ctx context.Context) (*SweepStats, error) {
	now := s.clock.Now()
	stats := &SweepStats{}

	pruned, err := s.repomanager.Idempotency(s.db).DeleteOlderThan(ctx, now.Add(-s.config.IdempotencyRetention))
	if err != nil {
		return stats, fmt.Errorf("prune idempotency records: %w", err)
	}
	stats.IdempotencyPruned = pruned

	if s.config.S3Bucket == "" {
		return stats, nil
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return stats, fmt.Errorf("s3 client: %w", err)
	}

	cutoff := now.Add(-s.config.AuditRetention)
	for {
		entries, err := s.repomanager.Audit(s.db).ListOlderThan(ctx, cutoff, auditArchiveBatch)
		if err != nil {
			return stats, fmt.Errorf("list audit entries: %w", err)
		}
		if len(entries) == 0 {
			return stats, nil
		}

		key, err := s.archive(ctx, client, entries, now)
		if err != nil {
			return stats, err
		}
		stats.ArchiveKeys = append(stats.ArchiveKeys, key)
		stats.AuditArchived += len(entries)

		if len(entries) < auditArchiveBatch {
			return stats, nil
		}
	}
}

func (s *RetentionService) archive(ctx context.Context, client *s3.Client, entries []*models.AuditEntry, now time.Time) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", err
		}
	}

	bucket := s.config.S3Bucket
	key := ArchiveKey(now)
	_, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("upload audit archive: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Audit(tx)
		for _, e := range entries {
			if err := repo.Delete(ctx, e.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("delete archived audit entries: %w", err)
	}

	s.log.Info(ctx, "audit entries archived", "key", key, "count", len(entries))
	return key, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error(ctx, "retention sweep failed", "error", err)
				continue
			}
			s.log.Debug(ctx, "retention sweep done",
				"idempotency_pruned", stats.IdempotencyPruned, "audit_archived", stats.AuditArchived)
		}
	}
}
