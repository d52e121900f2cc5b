package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/pds-migration-workbench/internal/platform"
)

// Identities holds the account DIDs resolved on each side.
type Identities struct {
	Source      string
	Destination string
}

// PermissionValidator confirms the operator holds a working session on both
// servers and may read the source account.
type PermissionValidator struct {
	logger  hclog.Logger
	retries uint64
}

func NewPermissionValidator(logger hclog.Logger, retries uint64) *PermissionValidator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PermissionValidator{logger: logger.Named("permissions"), retries: retries}
}

// Validate resolves both identities in parallel, then checks that the source
// profile is readable.
func (p *PermissionValidator) Validate(ctx context.Context, source, destination platform.Client) (*Identities, error) {
	if source == nil {
		return nil, newError(KindAuthenticationRequired, errors.New("no source session"))
	}
	if destination == nil {
		return nil, newError(KindDestinationClientCreationFailed, errors.New("no destination session"))
	}

	ids := &Identities{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := platform.RetryReads(gctx, p.retries, func() error {
			did, err := source.Identity(gctx)
			ids.Source = did
			return err
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, platform.ErrUnauthorized):
			return newError(KindSourceAuthExpired, err)
		case errors.Is(err, context.Canceled):
			return err
		}
		return newError(KindSourceAuthFailed, transportError(source.Host(), err))
	})
	g.Go(func() error {
		err := platform.RetryReads(gctx, p.retries, func() error {
			did, err := destination.Identity(gctx)
			ids.Destination = did
			return err
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, platform.ErrUnauthorized):
			return newError(KindDestinationAuthFailed, err)
		case errors.Is(err, context.Canceled):
			return err
		}
		return newError(KindDestinationAuthFailed, transportError(destination.Host(), err))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var profile *platform.ProfileResponse
	err := platform.RetryReads(ctx, p.retries, func() error {
		resp, err := source.GetProfile(ctx, ids.Source)
		profile = resp
		return err
	})
	if err != nil {
		return nil, newError(KindSourceAuthFailed, transportError(source.Host(), err))
	}
	if !profile.OK() {
		return nil, newError(KindSourceAuthFailed,
			fmt.Errorf("profile %s not readable: HTTP %d", ids.Source, profile.StatusCode))
	}

	p.logger.Debug("sessions confirmed", "source", ids.Source, "destination", ids.Destination)
	return ids, nil
}
