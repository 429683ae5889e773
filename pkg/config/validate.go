package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

var validate = validator.New()

// Validate checks a fully-defaulted configuration for invalid values.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(errs))
		}
		return err
	}

	// A download chunk travels in one frame's binary section, so the
	// chunk size can never exceed the frame cap.
	if cfg.FileChunkSize > protocol.MaxBinarySize {
		return fmt.Errorf("file_chunk_size %d exceeds the maximum frame binary size %d",
			cfg.FileChunkSize, protocol.MaxBinarySize)
	}

	if cfg.WriteQueueMax.Uint64() < uint64(protocol.HeaderSize) {
		return fmt.Errorf("write_queue_max %s cannot hold a single frame header", cfg.WriteQueueMax)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	return nil
}

// formatValidationErrors turns validator output into one readable line
// per offending field.
func formatValidationErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldName(fe)))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fieldName(fe), fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fieldName(fe), fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fieldName(fe), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fieldName(fe), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// fieldName maps a struct field back to its config-file key.
func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "BindHost":
		return "bind_host"
	case "Port":
		return "port"
	case "DataDir":
		return "data_dir"
	case "DBPath":
		return "db_path"
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	case "ThreadPoolSize":
		return "thread_pool_size"
	case "MaxClients":
		return "max_clients"
	case "HistoryPageSize":
		return "history_page_size"
	case "FileChunkSize":
		return "file_chunk_size"
	case "ShutdownTimeout":
		return "shutdown_timeout"
	case "WriteQueueMax":
		return "write_queue_max"
	default:
		return fe.Field()
	}
}
