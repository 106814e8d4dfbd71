// Package storage keeps uploaded files in named buckets on the local filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	BucketResumes     = "resumes"
	BucketAvatars     = "avatars"
	BucketUserAvatars = "user-avatars"
)

var buckets = map[string]bool{BucketResumes: true, BucketAvatars: true, BucketUserAvatars: true}

// Object describes a stored file.
type Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url"`
	Size   int64  `json:"size"`
}

type Store struct {
	root          string
	publicBaseURL string
	maxBytes      int64
}

func New(root, publicBaseURL string, maxUploadMB int) (*Store, error) {
	for b := range buckets {
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", b, err)
		}
	}
	return &Store{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      int64(maxUploadMB) << 20,
	}, nil
}

func (s *Store) Root() string { return s.root }

// Put writes r under bucket/owner/<uuid><ext of fileName>. Uploads larger than the configured
// limit are rejected and leave nothing behind.
func (s *Store) Put(bucket, owner, fileName string, r io.Reader) (*Object, error) {
	if !buckets[bucket] {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	if owner == "" || strings.ContainsAny(owner, `/\.`) {
		return nil, fmt.Errorf("invalid owner %q", owner)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	key := path.Join(owner, uuid.NewString()+ext)
	full := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	limit := r
	if s.maxBytes > 0 {
		limit = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, limit)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("file exceeds %d bytes", s.maxBytes)
	}
	if err != nil {
		_ = os.Remove(full)
		return nil, err
	}

	return &Object{Bucket: bucket, Key: key, URL: s.URL(bucket, key), Size: n}, nil
}

func (s *Store) Open(bucket, key string) (*os.File, error) {
	full, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes an object. Missing objects are not an error.
func (s *Store) Delete(bucket, key string) error {
	full, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) URL(bucket, key string) string {
	return s.publicBaseURL + "/" + bucket + "/" + key
}

func (s *Store) resolve(bucket, key string) (string, error) {
	if !buckets[bucket] {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
