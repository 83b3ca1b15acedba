package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage persists files on disk under a base directory. Download links
// point back at the API and carry a signed token.
type LocalStorage struct {
	baseDir     string
	downloadURL string
	signer      *SignedURLSigner
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// downloadURL is the absolute or root-relative endpoint that redeems signed tokens.
func NewLocalStorage(baseDir, downloadURL string, signer *SignedURLSigner) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if signer == nil {
		return nil, errors.New("local storage requires a signer")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, downloadURL: downloadURL, signer: signer}, nil
}

// Put copies r into the file addressed by key.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write file: %w", err)
	}
	return file.Close()
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	info := ObjectInfo{
		Key:         key,
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
		ModifiedAt:  stat.ModTime(),
	}
	return file, info, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// URL returns a signed link to the download endpoint.
func (s *LocalStorage) URL(_ context.Context, key string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.downloadURL + "?token=" + url.QueryEscape(token), expiresAt, nil
}

// Redeem validates a signed token and returns the key it grants access to.
func (s *LocalStorage) Redeem(token string) (string, error) {
	key, _, err := s.signer.Parse(token)
	return key, err
}

func (s *LocalStorage) resolve(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(cleaned)), nil
}
