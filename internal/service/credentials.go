package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
	"github.com/iliyamo/peer-support/internal/utils"
)

// Tokens is an issued access/refresh pair.
type Tokens struct {
	Access     string
	AccessExp  time.Time
	Refresh    string
	RefreshExp time.Time
}

// Credentials issues, verifies, rotates and revokes session tokens.  Each
// user has one refresh slot holding the hash of the last issued refresh
// token, so a new login on one device invalidates the refresh token held
// by any other device.
type Credentials struct {
	*base
	opts Options
}

// Issue mints a token pair for u and overwrites its refresh slot.
func (c *Credentials) Issue(ctx context.Context, u *model.User) (*Tokens, error) {
	t, err := c.mint(u)
	if err != nil {
		return nil, err
	}
	sctx, cancel := c.bounded(ctx)
	defer cancel()
	if err := c.store().SetRefreshTokenHash(sctx, u.ID, utils.HashRefreshRaw(t.Refresh)); err != nil {
		return nil, storeErr(err, "user not found")
	}
	return t, nil
}

func (c *Credentials) mint(u *model.User) (*Tokens, error) {
	access, err := utils.NewAccessToken(c.opts.AccessSecret, u.ID, u.FullName, u.Email, c.opts.AccessTTL)
	if err != nil {
		return nil, wrapErr(Internal, "could not issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(c.opts.RefreshSecret, u.ID, c.opts.RefreshTTL)
	if err != nil {
		return nil, wrapErr(Internal, "could not issue refresh token", err)
	}
	return &Tokens{
		Access:     access.Token,
		AccessExp:  access.Exp,
		Refresh:    refresh.Raw,
		RefreshExp: refresh.Exp,
	}, nil
}

// VerifyAccess checks an access token and returns the user id it names.
// Every failure is the same generic Unauthorized.
func (c *Credentials) VerifyAccess(raw string) (string, error) {
	claims, err := utils.ParseAccessToken(c.opts.AccessSecret, raw)
	if err != nil {
		c.deps.Metrics.AuthFailed("access_token")
		return "", wrapErr(Unauthorized, "invalid or expired access token", err)
	}
	return claims.Subject, nil
}

// Rotate exchanges a refresh token for a new pair.  The presented token
// must be the one currently stored for the user; a superseded token fails.
// The slot is swapped with a compare-and-set, so of several concurrent
// rotations of one token exactly one succeeds.
func (c *Credentials) Rotate(ctx context.Context, raw string) (*Tokens, *model.User, error) {
	claims, err := utils.ParseRefreshToken(c.opts.RefreshSecret, raw)
	if err != nil {
		c.deps.Metrics.AuthFailed("refresh_token")
		return nil, nil, wrapErr(Unauthorized, "invalid or expired refresh token", err)
	}

	sctx, cancel := c.bounded(ctx)
	u, err := c.store().GetUserByID(sctx, claims.Subject)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.deps.Metrics.AuthFailed("refresh_token")
			return nil, nil, wrapErr(Unauthorized, "invalid or expired refresh token", err)
		}
		return nil, nil, storeErr(err, "")
	}

	presented := utils.HashRefreshRaw(raw)
	if u.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(u.RefreshTokenHash)) != 1 {
		return nil, nil, c.refreshReused(u.ID)
	}
	if !u.IsActive() {
		return nil, nil, newErr(Forbidden, "account is not active")
	}

	tokens, err := c.mint(u)
	if err != nil {
		return nil, nil, err
	}
	sctx, cancel = c.bounded(ctx)
	err = c.store().SwapRefreshTokenHash(sctx, u.ID, presented, utils.HashRefreshRaw(tokens.Refresh))
	cancel()
	switch {
	case errors.Is(err, repository.ErrStale):
		return nil, nil, c.refreshReused(u.ID)
	case errors.Is(err, repository.ErrNotFound):
		c.deps.Metrics.AuthFailed("refresh_token")
		return nil, nil, wrapErr(Unauthorized, "invalid or expired refresh token", err)
	case err != nil:
		return nil, nil, storeErr(err, "")
	}
	return tokens, u, nil
}

func (c *Credentials) refreshReused(userID string) error {
	c.deps.Metrics.AuthFailed("refresh_reuse")
	c.log().Info("refresh token rejected: not current", "user_id", userID)
	return newErr(Unauthorized, "refresh token is expired or already used")
}

// Revoke clears the user's refresh slot.
func (c *Credentials) Revoke(ctx context.Context, userID string) error {
	sctx, cancel := c.bounded(ctx)
	defer cancel()
	return storeErr(c.store().SetRefreshTokenHash(sctx, userID, ""), "user not found")
}
