// Package transfer implements the two-phase file transfer lifecycle:
// offered files accumulate chunks in a temp file, are verified against
// their announced sha256 on finalize, and only then move to durable
// storage and become downloadable.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
)

// Manager owns the on-disk layout under the data directory:
// files/<file_id>_<sanitized_name> for finalized payloads and
// tmp/<file_id>.part for uploads in flight. Database state lives in
// the chat store; the manager keeps the two in agreement.
type Manager struct {
	store     *store.Store
	filesDir  string
	tempDir   string
	chunkSize int
}

// Offer describes a file announced by an uploader.
type Offer struct {
	UploaderID       string
	UploaderNickname string
	ConversationType string
	ConversationID   string
	FileName         string
	FileSize         int64
	Sha256           string
	Recipients       []string
}

// UploadState is the current position of an in-flight upload.
// UploadedSize is the next offset the uploader must send.
type UploadState struct {
	File         *models.File
	UploadedSize int64
}

// NewManager creates the storage directories and returns a manager.
func NewManager(st *store.Store, dataDir string, chunkSize int) (*Manager, error) {
	m := &Manager{
		store:     st,
		filesDir:  filepath.Join(dataDir, "files"),
		tempDir:   filepath.Join(dataDir, "tmp"),
		chunkSize: chunkSize,
	}
	if err := os.MkdirAll(m.filesDir, 0755); err != nil {
		return nil, fmt.Errorf("create files directory: %w", err)
	}
	if err := os.MkdirAll(m.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return m, nil
}

// ChunkSize returns the configured download chunk size in bytes.
func (m *Manager) ChunkSize() int {
	return m.chunkSize
}

// CreateUpload registers a fresh upload: a new file id, the file record,
// the in-flight upload row, and the deduplicated target set, all in one
// store transaction. No bytes touch disk yet.
func (m *Manager) CreateUpload(ctx context.Context, offer *Offer) (*UploadState, error) {
	if offer.FileSize <= 0 {
		return nil, fmt.Errorf("file_size must be positive")
	}
	if len(offer.Recipients) == 0 {
		return nil, fmt.Errorf("recipients empty")
	}

	u := uuid.New()
	fileID := hex.EncodeToString(u[:])
	safeName := SanitizeFileName(offer.FileName)

	file := &models.File{
		FileID:           fileID,
		UploaderID:       offer.UploaderID,
		UploaderNickname: offer.UploaderNickname,
		ConversationType: offer.ConversationType,
		ConversationID:   offer.ConversationID,
		FileName:         offer.FileName,
		FileSize:         offer.FileSize,
		Sha256:           offer.Sha256,
		StoragePath:      filepath.Join(m.filesDir, fileID+"_"+safeName),
	}
	upload := &models.FileUpload{
		UploaderID: offer.UploaderID,
		TempPath:   filepath.Join(m.tempDir, fileID+".part"),
	}

	if err := m.store.CreateFileUpload(ctx, file, upload, offer.Recipients); err != nil {
		return nil, err
	}
	return &UploadState{File: file, UploadedSize: 0}, nil
}

// ResumeUpload returns the current upload position for an interrupted
// upload. The temp file's on-disk size is authoritative: when it
// disagrees with the recorded uploaded size (a crash between write and
// commit, or a lost temp file) the record is corrected before returning.
func (m *Manager) ResumeUpload(ctx context.Context, fileID, uploaderID string) (*UploadState, error) {
	file, upload, err := m.getUpload(ctx, fileID, uploaderID)
	if err != nil {
		return nil, err
	}

	var actualSize int64
	if info, err := os.Stat(upload.TempPath); err == nil {
		actualSize = info.Size()
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat temp file: %w", err)
	}

	if actualSize != upload.UploadedSize {
		if err := m.store.SetUploadedSize(ctx, fileID, actualSize); err != nil {
			return nil, err
		}
		upload.UploadedSize = actualSize
	}

	return &UploadState{File: file, UploadedSize: upload.UploadedSize}, nil
}

// AppendChunk writes one chunk at the expected offset. The offset must
// equal the recorded uploaded size exactly and the chunk must not run
// past the announced file size. A chunk at offset zero truncates any
// stale temp file from a previous attempt.
func (m *Manager) AppendChunk(ctx context.Context, fileID, uploaderID string, offset int64, data []byte) (*UploadState, error) {
	file, upload, err := m.getUpload(ctx, fileID, uploaderID)
	if err != nil {
		return nil, err
	}
	if offset != upload.UploadedSize {
		return nil, models.ErrOffsetMismatch
	}
	if offset+int64(len(data)) > file.FileSize {
		return nil, models.ErrChunkOverrun
	}

	flags := os.O_RDWR | os.O_CREATE
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(upload.TempPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	nextOffset := offset + int64(len(data))
	if err := m.store.SetUploadedSize(ctx, fileID, nextOffset); err != nil {
		return nil, err
	}

	return &UploadState{File: file, UploadedSize: nextOffset}, nil
}

// FinalizeUpload verifies the completed temp file against the announced
// sha256, moves it to its storage path, and deletes the upload row,
// making the file downloadable. Returns the file record for fanout.
func (m *Manager) FinalizeUpload(ctx context.Context, fileID, uploaderID string) (*models.File, error) {
	file, upload, err := m.getUpload(ctx, fileID, uploaderID)
	if err != nil {
		return nil, err
	}
	if upload.UploadedSize != file.FileSize {
		return nil, models.ErrUploadIncomplete
	}

	computed, err := sha256HexFile(upload.TempPath)
	if err != nil {
		return nil, err
	}
	if computed != file.Sha256 {
		return nil, models.ErrChecksumMismatch
	}

	if err := os.Rename(upload.TempPath, file.StoragePath); err != nil {
		return nil, fmt.Errorf("move file to storage path: %w", err)
	}

	if err := m.store.DeleteUpload(ctx, fileID); err != nil {
		return nil, err
	}
	return file, nil
}

// ReadChunk reads up to the configured chunk size from a finalized file
// at the given offset. The reader must be in the file's target set and
// the upload must be finished.
func (m *Manager) ReadChunk(ctx context.Context, fileID, userID string, offset int64) ([]byte, *models.File, error) {
	allowed, err := m.store.HasFileTarget(ctx, fileID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, models.ErrNoDownloadAccess
	}

	uploading, err := m.store.IsUploading(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if uploading {
		return nil, nil, models.ErrStillUploading
	}

	file, err := m.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if offset < 0 || offset >= file.FileSize {
		return nil, nil, models.ErrOffsetOutOfRange
	}

	f, err := os.Open(file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	remaining := file.FileSize - offset
	toRead := int64(m.chunkSize)
	if remaining < toRead {
		toRead = remaining
	}

	data := make([]byte, toRead)
	n, err := f.ReadAt(data, offset)
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	return data[:n], file, nil
}

// getUpload loads the file and upload rows for an in-flight upload and
// enforces that only the original uploader may touch it.
func (m *Manager) getUpload(ctx context.Context, fileID, uploaderID string) (*models.File, *models.FileUpload, error) {
	upload, err := m.store.GetUpload(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if upload.UploaderID != uploaderID {
		return nil, nil, models.ErrUploaderMismatch
	}
	file, err := m.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	return file, upload, nil
}

// sha256HexFile streams a file through sha256 and returns the lowercase
// hex digest.
func sha256HexFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
