// s3 object store Fetcher, for artifacts living at "s3://bucket/prefix".
//
// Every object under the prefix is downloaded, preserving relative keys
// as filepaths.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/recmeta/recmeta/pkg/transfer"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	return nil
}

type Fetcher struct {
	client *minio.Client
}

var _ transfer.Fetcher = &Fetcher{}

func New(cfg Config) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return &Fetcher{client: client}, nil
}

func NewWithClient(client *minio.Client) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	return &Fetcher{client: client}, nil
}

// SplitURI breaks "s3://bucket/prefix/..." into bucket and prefix.
func SplitURI(src string) (bucket string, prefix string, err error) {
	rest, found := strings.CutPrefix(src, "s3://")
	if !found {
		return "", "", fmt.Errorf("not a s3 uri: %s", src)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket in s3 uri: %s", src)
	}
	return bucket, prefix, nil
}

// relFromKey locates key under the artifact prefix.
//
// Listing matches plain string prefixes, so keys of sibling artifacts
// (".../model/12" for prefix ".../model/1") come back too; those are
// rejected here. A key equal to the prefix itself is a single-object
// artifact and maps to its base name, like a single-file local copy.
func relFromKey(key string, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return key, true
	}
	if key == prefix {
		return path.Base(key), true
	}
	if rel, found := strings.CutPrefix(key, prefix+"/"); found {
		return rel, true
	}
	return "", false
}

func (f *Fetcher) Exists(ctx context.Context, src string) (bool, error) {
	bucket, prefix, err := SplitURI(src)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // stop listing once decided

	for obj := range f.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimSuffix(prefix, "/"),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return false, obj.Err
		}
		if _, ok := relFromKey(obj.Key, prefix); ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fetcher) Fetch(ctx context.Context, src string, dest string) error {
	bucket, prefix, err := SplitURI(src)
	if err != nil {
		return err
	}

	for obj := range f.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimSuffix(prefix, "/"),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return obj.Err
		}

		rel, ok := relFromKey(obj.Key, prefix)
		if !ok {
			continue
		}
		fdest := filepath.Join(dest, filepath.FromSlash(rel))
		if err := f.fetchObject(ctx, bucket, obj.Key, fdest); err != nil {
			return fmt.Errorf("s3://%s/%s: %w", bucket, obj.Key, err)
		}
	}
	return nil
}

func (f *Fetcher) fetchObject(ctx context.Context, bucket string, key string, dest string) error {
	r, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dest), os.FileMode(0777)); err != nil {
		return err
	}
	w, err := os.OpenFile(dest, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(0666))
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = io.Copy(w, r)
	return err
}
