package models

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var handlePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// MigrationOptions is the user's chosen migration scope. Treat it as immutable
// once it has been attached to an Operation.
type MigrationOptions struct {
	IncludeFollows   bool `json:"include_follows" yaml:"include_follows"`
	IncludeFollowers bool `json:"include_followers" yaml:"include_followers"`
	IncludePosts     bool `json:"include_posts" yaml:"include_posts"`
	IncludeMedia     bool `json:"include_media" yaml:"include_media"`
	IncludeLikes     bool `json:"include_likes" yaml:"include_likes"`
	IncludeReposts   bool `json:"include_reposts" yaml:"include_reposts"`
	IncludeBlocks    bool `json:"include_blocks" yaml:"include_blocks"`
	IncludeMutes     bool `json:"include_mutes" yaml:"include_mutes"`
	IncludeProfile   bool `json:"include_profile" yaml:"include_profile"`

	DestinationHandle  string `json:"destination_handle,omitempty" yaml:"destination_handle"`
	PreserveTimestamps bool   `json:"preserve_timestamps" yaml:"preserve_timestamps"`
	BatchSize          int    `json:"batch_size" yaml:"batch_size"`
	SkipDuplicates     bool   `json:"skip_duplicates" yaml:"skip_duplicates"`

	CreateBackupBeforeMigration bool `json:"create_backup_before_migration" yaml:"create_backup_before_migration"`
	VerifyAfterMigration        bool `json:"verify_after_migration" yaml:"verify_after_migration"`
	EnableRollbackOnFailure     bool `json:"enable_rollback_on_failure" yaml:"enable_rollback_on_failure"`
}

// DefaultOptions migrates everything with all safety toggles on.
func DefaultOptions() MigrationOptions {
	return MigrationOptions{
		IncludeFollows:              true,
		IncludeFollowers:            true,
		IncludePosts:                true,
		IncludeMedia:                true,
		IncludeLikes:                true,
		IncludeReposts:              true,
		IncludeBlocks:               true,
		IncludeMutes:                true,
		IncludeProfile:              true,
		PreserveTimestamps:          true,
		BatchSize:                   100,
		SkipDuplicates:              true,
		CreateBackupBeforeMigration: true,
		VerifyAfterMigration:        true,
		EnableRollbackOnFailure:     true,
	}
}

// MinimalOptions skips media, likes and reposts and uses smaller batches.
func MinimalOptions() MigrationOptions {
	o := DefaultOptions()
	o.IncludeMedia = false
	o.IncludeLikes = false
	o.IncludeReposts = false
	o.BatchSize = 50
	return o
}

// Validate checks the options are usable.
func (o MigrationOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&o.DestinationHandle, validation.Match(handlePattern)),
	)
}
