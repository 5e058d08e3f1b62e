package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

type filesystemStore struct {
	root      string
	publicUrl string
}

func (s *filesystemStore) resolve(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" {
		return "", errors.New("object key is required")
	}

	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *filesystemStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(target), 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	file, err := os.Create(target)
	if err != nil {
		return "", err
	}

	defer file.Close()

	_, err = file.Write(body)
	if err != nil {
		log.Err(err).Msgf("Failed to write content of %s to disk", key)
		return "", err
	}

	err = file.Sync()
	if err != nil {
		log.Err(err).Msgf("Failed to commit content of %s to disk", key)
		return "", err
	}

	return s.publicUrl + "/" + strings.TrimPrefix(path.Clean("/"+key), "/"), nil
}

func (s *filesystemStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func NewFilesystemStore(root, publicUrl string) (ObjectStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}

	err := os.MkdirAll(root, 0o755)
	if err != nil {
		return nil, err
	}

	return &filesystemStore{root: root, publicUrl: strings.TrimRight(publicUrl, "/")}, nil
}
