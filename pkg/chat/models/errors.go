package models

import "errors"

// Common errors for chat store operations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("password mismatch")

	// Group errors
	ErrGroupNotFound     = errors.New("group not found")
	ErrAlreadyMember     = errors.New("user already in group")
	ErrNotGroupMember    = errors.New("user not in group")
	ErrOwnerCannotLeave  = errors.New("owner cannot leave group")
	ErrCannotKickOwner   = errors.New("cannot kick owner")
	ErrAdminKickAdmin    = errors.New("admin cannot kick another admin")
	ErrNotGroupOwner     = errors.New("only owner can perform this action")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrCannotChangeOwner = errors.New("cannot change owner role")

	// File errors
	ErrFileNotFound     = errors.New("file not found")
	ErrUploadNotFound   = errors.New("upload not found")
	ErrUploaderMismatch = errors.New("uploader mismatch")
	ErrOffsetMismatch   = errors.New("offset mismatch")
	ErrChunkOverrun     = errors.New("chunk exceeds file size")
	ErrUploadIncomplete = errors.New("file not fully uploaded")
	ErrChecksumMismatch = errors.New("sha256 mismatch")
	ErrStillUploading   = errors.New("file is still uploading")
	ErrNoDownloadAccess = errors.New("no permission to download")
	ErrOffsetOutOfRange = errors.New("offset out of range")
)
