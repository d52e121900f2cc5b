package migration

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/juju/clock"

	"github.com/rflorenc/pds-migration-workbench/internal/models"
	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

const defaultPostSample = 10

// MigrationVerifier compares an account on both servers after import.
type MigrationVerifier struct {
	clock      clock.Clock
	logger     hclog.Logger
	retries    uint64
	postSample int
}

func NewMigrationVerifier(clk clock.Clock, logger hclog.Logger, retries uint64) *MigrationVerifier {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &MigrationVerifier{
		clock:      clk,
		logger:     logger.Named("verify"),
		retries:    retries,
		postSample: defaultPostSample,
	}
}

// checkOutcome is what one verification check contributes to the report.
type checkOutcome struct {
	verified   int
	successful int
	failures   []models.VerificationFailure
	warnings   []string
}

// Verify runs the profile, post sample and follows checks concurrently. A
// check that cannot fetch its data reports a warning or failure; it never
// aborts the others.
func (v *MigrationVerifier) Verify(ctx context.Context, source, destination platform.Client, did string, op *models.Operation) *models.VerificationReport {
	checks := []func(context.Context, platform.Client, platform.Client, string) checkOutcome{
		v.checkProfile,
		v.checkPosts,
		v.checkFollows,
	}
	outcomes := make([]checkOutcome, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		i, check := i, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = check(ctx, source, destination, did)
		}()
	}
	wg.Wait()

	report := &models.VerificationReport{
		Failures:   []models.VerificationFailure{},
		Warnings:   []string{},
		VerifiedAt: v.clock.Now(),
	}
	for _, o := range outcomes {
		report.ItemsVerified += o.verified
		report.ItemsSuccessful += o.successful
		report.Failures = append(report.Failures, o.failures...)
		report.Warnings = append(report.Warnings, o.warnings...)
	}
	report.ItemsFailed = len(report.Failures)
	report.Finalize()

	if op != nil {
		v.logger.Info("verification finished", "operation", op.ID,
			"verified", report.ItemsVerified, "failed", report.ItemsFailed, "rate", report.SuccessRate)
	}
	return report
}

func (v *MigrationVerifier) fetchProfile(ctx context.Context, c platform.Client, did string) (*platform.ProfileResponse, error) {
	var resp *platform.ProfileResponse
	err := platform.RetryReads(ctx, v.retries, func() error {
		r, err := c.GetProfile(ctx, did)
		resp = r
		return err
	})
	return resp, err
}

func (v *MigrationVerifier) checkProfile(ctx context.Context, source, destination platform.Client, did string) checkOutcome {
	out := checkOutcome{verified: 1}

	src, serr := v.fetchProfile(ctx, source, did)
	dst, derr := v.fetchProfile(ctx, destination, did)
	if serr != nil || derr != nil || !src.OK() || !dst.OK() || src.Profile == nil || dst.Profile == nil {
		out.failures = append(out.failures, models.VerificationFailure{
			Item:     "Profile",
			Expected: "profile readable on both servers",
			Actual:   describeFetch(src, serr) + " / " + describeFetch(dst, derr),
			Severity: models.SeverityMajor,
		})
		return out
	}

	if src.Profile.DisplayName != dst.Profile.DisplayName || src.Profile.Description != dst.Profile.Description {
		out.failures = append(out.failures, models.VerificationFailure{
			Item:     "Profile",
			Expected: profileSummary(src.Profile),
			Actual:   profileSummary(dst.Profile),
			Severity: models.SeverityMajor,
		})
		return out
	}
	out.successful = 1
	return out
}

func (v *MigrationVerifier) checkPosts(ctx context.Context, source, destination platform.Client, did string) checkOutcome {
	var out checkOutcome
	fetch := func(c platform.Client) (*platform.FeedResponse, error) {
		var resp *platform.FeedResponse
		err := platform.RetryReads(ctx, v.retries, func() error {
			r, err := c.GetAuthorFeed(ctx, did, v.postSample)
			resp = r
			return err
		})
		if err == nil && !resp.OK() {
			err = fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return resp, err
	}

	src, err := fetch(source)
	if err != nil {
		out.warnings = append(out.warnings, fmt.Sprintf("could not sample posts on %s: %v", source.Host(), err))
		return out
	}
	dst, err := fetch(destination)
	if err != nil {
		out.warnings = append(out.warnings, fmt.Sprintf("could not sample posts on %s: %v", destination.Host(), err))
		return out
	}

	out.verified = 1
	if len(src.Posts) != len(dst.Posts) {
		out.failures = append(out.failures, models.VerificationFailure{
			Item:     "Post Count",
			Expected: strconv.Itoa(len(src.Posts)),
			Actual:   strconv.Itoa(len(dst.Posts)),
			Severity: models.SeverityMinor,
		})
		return out
	}
	out.successful = 1
	return out
}

func (v *MigrationVerifier) checkFollows(ctx context.Context, source, destination platform.Client, did string) checkOutcome {
	out := checkOutcome{verified: 1}
	for _, c := range []platform.Client{source, destination} {
		var resp *platform.FollowsResponse
		err := platform.RetryReads(ctx, v.retries, func() error {
			r, err := c.GetFollows(ctx, did, 1, "")
			resp = r
			return err
		})
		if err != nil || !resp.OK() {
			actual := "unreachable"
			if err == nil {
				actual = "HTTP " + strconv.Itoa(resp.StatusCode)
			}
			out.failures = append(out.failures, models.VerificationFailure{
				Item:     "Follows",
				Expected: "follows readable on " + c.Host(),
				Actual:   actual,
				Severity: models.SeverityMinor,
			})
			return out
		}
	}
	out.successful = 1
	return out
}

func describeFetch(resp *platform.ProfileResponse, err error) string {
	switch {
	case err != nil:
		return "unreachable"
	case resp == nil || !resp.OK():
		if resp != nil {
			return "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		return "no response"
	case resp.Profile == nil:
		return "empty profile"
	}
	return "ok"
}

func profileSummary(p *platform.Profile) string {
	return fmt.Sprintf("displayName=%q description=%q", p.DisplayName, p.Description)
}
