package migration

import (
	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// Per-item size estimates used before the repository has been exported.
const (
	bytesPerPost       = 1_500
	bytesPerFollow     = 250
	mediaBytesPerPost  = 100_000
	bytesPerProfile    = 4_000
	maxTransferWindowH = 1
)

// EstimateAccountSize guesses the exported size of an account from its
// profile counters.
func EstimateAccountSize(p *platform.Profile, opts models.MigrationOptions) int64 {
	if p == nil {
		return 0
	}
	size := int64(bytesPerProfile)
	if opts.IncludePosts {
		size += int64(p.PostsCount) * bytesPerPost
		if opts.IncludeMedia {
			size += int64(p.PostsCount) * mediaBytesPerPost
		}
	}
	if opts.IncludeFollows {
		size += int64(p.FollowsCount) * bytesPerFollow
	}
	return size
}

// ValidateTransferLimits checks the estimated transfer against the
// destination's advertised limits. A transfer that cannot finish within the
// destination's hourly byte budget is refused, since the monitor stops any
// migration that runs past an hour anyway.
func ValidateTransferLimits(op *models.Operation) error {
	estimated := op.EstimatedDataSize()
	dst := op.Destination

	if dst.MaxAccountSize != nil && estimated > *dst.MaxAccountSize {
		return DataSizeExceedsLimit(estimated, *dst.MaxAccountSize)
	}
	if dst.RateLimit != nil && dst.RateLimit.BytesPerHour > 0 &&
		estimated > dst.RateLimit.BytesPerHour*maxTransferWindowH {
		return &Error{Kind: KindRateLimitExceeded, Actual: estimated, Limit: dst.RateLimit.BytesPerHour}
	}
	return nil
}
