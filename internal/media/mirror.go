package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/pkg/logger"
)

const maxImageSize = 20 << 20

// ObjectStore is the part of the S3 client the mirror needs.
type ObjectStore interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	// PublicURL is prepended to object keys in returned links.
	PublicURL string `yaml:"public_url"`
}

// NewS3Client builds a client for AWS S3 or any S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Mirror fetches listing images once and keeps them in a bucket.
// Without a bucket it is a no-op that hands back the source URL.
type Mirror struct {
	store  ObjectStore
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func NewMirror(store ObjectStore, cfg Config, client *http.Client, log logger.Logger) *Mirror {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Mirror{store: store, cfg: cfg, client: client, log: log}
}

func (m *Mirror) Enabled() bool {
	return m != nil && m.store != nil && m.cfg.Bucket != ""
}

// Key is <prefix>/<namespace>/<sha1(url)><ext>.
func (m *Mirror) Key(namespace, sourceURL string) string {
	sum := sha1.Sum([]byte(sourceURL))
	return path.Join(m.cfg.Prefix, url.PathEscape(namespace), hex.EncodeToString(sum[:])+imageExt(sourceURL))
}

// URL is where Store puts sourceURL; no network calls are made.
func (m *Mirror) URL(namespace, sourceURL string) string {
	if !m.Enabled() || sourceURL == "" || m.owns(sourceURL) {
		return sourceURL
	}
	return m.objectURL(m.Key(namespace, sourceURL))
}

// owns reports whether u already points into the bucket.
func (m *Mirror) owns(u string) bool {
	return strings.HasPrefix(u, m.objectURL(""))
}

func (m *Mirror) Store(ctx context.Context, namespace, sourceURL string) (string, error) {
	if !m.Enabled() || sourceURL == "" || m.owns(sourceURL) {
		return sourceURL, nil
	}
	key := m.Key(namespace, sourceURL)

	_, err := m.store.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return m.objectURL(key), nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("head %s: %w", key, err)
	}

	body, contentType, err := m.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	_, err = m.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	m.log.Log("image %s stored as %s", sourceURL, key)
	return m.objectURL(key), nil
}

func (m *Mirror) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image url %q: %v", core.ErrData, sourceURL, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image %s: %w", core.ErrTransport, sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: image %s returned %d", core.ErrData, sourceURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: image %s: %w", core.ErrTransport, sourceURL, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

func (m *Mirror) objectURL(key string) string {
	if m.cfg.PublicURL != "" {
		return strings.TrimRight(m.cfg.PublicURL, "/") + "/" + key
	}
	return "s3://" + m.cfg.Bucket + "/" + key
}

func imageExt(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
