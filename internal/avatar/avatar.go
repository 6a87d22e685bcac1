// Package avatar stores profile images and hands back durable URLs.
package avatar

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"taskflow/internal/domain/errors"

	"github.com/google/uuid"
)

const MaxSize = 2 << 20

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Validate rejects uploads over 2MB or without an image/* content type.
func Validate(up Upload) error {
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
		return errors.ErrInvalidAvatar
	}
	if up.Size > MaxSize {
		return errors.ErrAvatarTooLarge
	}
	return nil
}

// Store persists a validated upload and returns its public URL. Remove
// deletes an object previously returned by Save; unknown URLs are ignored.
type Store interface {
	Save(ctx context.Context, userID string, up Upload) (string, error)
	Remove(ctx context.Context, url string) error
}

func objectKey(userID string, up Upload) string {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if len(ext) > 8 {
		ext = ""
	}
	d := time.Now()
	return fmt.Sprintf("avatars/%s/%d%02d%02d-%s%s", userID, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// DiskStore writes avatars under Dir and serves them below BaseURL.
type DiskStore struct {
	Dir     string
	BaseURL string
}

func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *DiskStore) Save(ctx context.Context, userID string, up Upload) (string, error) {
	if err := Validate(up); err != nil {
		return "", err
	}
	key := objectKey(userID, up)
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	src, err := up.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, io.LimitReader(src, MaxSize+1)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	log.Println("[SUCCESS] Avatar stored:", key)
	return s.BaseURL + "/uploads/" + path.Clean(key), nil
}

func (s *DiskStore) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.BaseURL+"/uploads/")
	if !ok || !strings.HasPrefix(key, "avatars/") || strings.Contains(key, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
