package models

// File is the durable record of an offered file. StoragePath points at
// the finalized payload under the data directory; while an upload is in
// flight the bytes live at the companion FileUpload's TempPath instead.
type File struct {
	FileID           string `gorm:"primaryKey;size:64" json:"file_id"`
	UploaderID       string `gorm:"not null;size:64" json:"uploader_id"`
	UploaderNickname string `gorm:"not null;size:64" json:"uploader_nickname"`
	ConversationType string `gorm:"not null;size:16;index:idx_files_conversation" json:"conversation_type"`
	ConversationID   string `gorm:"not null;size:64;index:idx_files_conversation" json:"conversation_id"`
	FileName         string `gorm:"not null;size:255" json:"file_name"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	Sha256           string `gorm:"not null;size:64" json:"sha256"`
	StoragePath      string `gorm:"not null" json:"-"`
	CreatedAt        int64  `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// FileUpload tracks an in-flight upload. The row exists only between
// offer and finalize; its presence is what marks a file as not yet
// downloadable. UploadedSize equals the byte length of TempPath and is
// the next offset the uploader must send.
type FileUpload struct {
	FileID       string `gorm:"primaryKey;size:64" json:"file_id"`
	UploaderID   string `gorm:"not null;size:64" json:"uploader_id"`
	TempPath     string `gorm:"not null" json:"-"`
	UploadedSize int64  `gorm:"not null" json:"uploaded_size"`
	Status       string `gorm:"not null;size:16" json:"status"`
	UpdatedAt    int64  `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for FileUpload.
func (FileUpload) TableName() string {
	return "file_uploads"
}

// FileTarget grants one user download access to a file and carries the
// offline file-notice spool, mirroring MessageTarget.
type FileTarget struct {
	FileID      string `gorm:"primaryKey;size:64" json:"file_id"`
	UserID      string `gorm:"primaryKey;size:64;index:idx_file_targets_pending" json:"user_id"`
	DeliveredAt *int64 `gorm:"index:idx_file_targets_pending" json:"delivered_at,omitempty"`
}

// TableName returns the table name for FileTarget.
func (FileTarget) TableName() string {
	return "file_targets"
}
