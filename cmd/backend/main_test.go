package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"message-board/internal/config"
	"message-board/internal/uploads"
)

func TestNewUploadStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{
			name: "disk backend",
			cfg:  config.Config{UploadBackend: config.BackendDisk, UploadDir: filepath.Join(t.TempDir(), "uploads")},
		},
		{
			name: "empty backend defaults to disk",
			cfg:  config.Config{UploadDir: filepath.Join(t.TempDir(), "uploads")},
		},
		{
			name:    "disk backend without dir",
			cfg:     config.Config{UploadBackend: config.BackendDisk},
			wantErr: true,
		},
		{
			name:    "minio backend with incomplete settings",
			cfg:     config.Config{UploadBackend: config.BackendMinio, S3Endpoint: "minio:9000"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     config.Config{UploadBackend: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			store, err := newUploadStore(context.Background(), tt.cfg)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.IsType(&uploads.DiskStore{}, store)

			st, err := os.Stat(tt.cfg.UploadDir)
			req.NoError(err)
			req.True(st.IsDir())
		})
	}
}
