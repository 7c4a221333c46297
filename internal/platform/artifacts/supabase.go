package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
	Prefix     string
}

// Supabase stores artifacts in a Supabase Storage bucket.
type Supabase struct {
	client *supabase.Client
	cfg    SupabaseConfig
}

var _ Store = (*Supabase)(nil)

func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "compressed"
	}
	return &Supabase{client: client, cfg: cfg}, nil
}

func (s *Supabase) objectPath(name string) string { return path.Join(s.cfg.Prefix, name) }

func (s *Supabase) Save(ctx context.Context, name, contentType string, data []byte) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	upsert := true
	_, err := s.client.Storage.UploadFile(s.cfg.Bucket, s.objectPath(name), bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("supabase upload %s: %w", name, err)
	}
	return nil
}

func (s *Supabase) Open(ctx context.Context, name string) ([]byte, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := s.client.Storage.DownloadFile(s.cfg.Bucket, s.objectPath(name))
	if err != nil {
		// storage-go surfaces the REST error body, which carries no typed code.
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("supabase download %s: %w", name, err)
	}
	return data, nil
}
