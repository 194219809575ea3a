package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage stores uploaded binaries (transfer proofs, payout receipts) and
// returns a retrievable URL. The real platform serves these from a CDN;
// the payment subsystem only needs the contract.
type Storage interface {
	Save(filename string, r io.Reader) (string, error)
}

// LocalStorage writes uploads to a directory served under baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Save(filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	name := fmt.Sprintf("%d-%s%s", time.Now().Unix(), uuid.New().String()[:8], ext)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}

	return s.baseURL + "/" + name, nil
}
