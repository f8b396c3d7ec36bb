package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/peer-support/internal/ids"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/queue"
	"github.com/iliyamo/peer-support/internal/repository"
	"github.com/iliyamo/peer-support/internal/utils"
)

// Directory owns accounts: registration, authentication, the motivator
// approval lifecycle and self-service profile edits.
type Directory struct {
	*base
	cost int
}

// RegisterInput is a self-registration request.  Motivator-only fields are
// required when Role is motivator and ignored otherwise.
type RegisterInput struct {
	Role         model.Role   `json:"role" validate:"required,oneof=client motivator"`
	FullName     string       `json:"fullName" validate:"required,max=120"`
	Email        string       `json:"email" validate:"required,email,max=255"`
	Password     string       `json:"password" validate:"required,min=8,max=72"`
	Gender       model.Gender `json:"gender" validate:"required,oneof=male female other"`
	Bio          string       `json:"bio" validate:"required_if=Role motivator"`
	Experience   string       `json:"experience" validate:"required_if=Role motivator"`
	Specialities string       `json:"specialities" validate:"required_if=Role motivator"`
	Reason       string       `json:"reason" validate:"required_if=Role motivator"`
	Photo        *Upload      `json:"-" validate:"-"`
}

// AdminInput creates an administrator out of band (operator CLI).
type AdminInput struct {
	FullName string       `json:"fullName" validate:"required,max=120"`
	Email    string       `json:"email" validate:"required,email,max=255"`
	Password string       `json:"password" validate:"required,min=8,max=72"`
	Gender   model.Gender `json:"gender" validate:"required,oneof=male female other"`
}

// Register creates a client or motivator account.  Motivators start
// pending; clients are active immediately.  The profile photo is stored
// first and removed again if the account cannot be created.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	trim(&in.FullName, &in.Email, &in.Bio, &in.Experience, &in.Specialities, &in.Reason)
	in.Email = strings.ToLower(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Photo == nil || in.Photo.Body == nil {
		return nil, newErr(Validation, "profile photo is required")
	}
	if err := d.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, d.cost)
	if err != nil {
		return nil, wrapErr(Internal, "could not hash password", err)
	}
	photo, err := d.put(ctx, folderPhotos, in.Photo)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &model.User{
		ID:           ids.New(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Gender:       in.Gender,
		Role:         in.Role,
		Status:       model.UserStatusActive,
		ProfilePhoto: photo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Role == model.RoleMotivator {
		u.Status = model.UserStatusPending
		u.Bio, u.Experience, u.Specialities, u.Reason = in.Bio, in.Experience, in.Specialities, in.Reason
	}
	if err := d.create(ctx, u); err != nil {
		d.discard(photo)
		return nil, err
	}
	return u, nil
}

// CreateAdmin creates an active administrator.  Admins cannot register
// through the public API.
func (d *Directory) CreateAdmin(ctx context.Context, in AdminInput) (*model.User, error) {
	trim(&in.FullName, &in.Email)
	in.Email = strings.ToLower(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := d.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, d.cost)
	if err != nil {
		return nil, wrapErr(Internal, "could not hash password", err)
	}
	now := time.Now().UTC()
	u := &model.User{
		ID:           ids.New(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		Gender:       in.Gender,
		Role:         model.RoleAdmin,
		Status:       model.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := d.create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Directory) ensureEmailFree(ctx context.Context, email string) error {
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	_, err := d.store().GetUserByEmail(sctx, email)
	switch {
	case err == nil:
		return newErr(Conflict, "email is already registered")
	case errors.Is(err, repository.ErrNotFound):
		return nil
	}
	return storeErr(err, "")
}

func (d *Directory) create(ctx context.Context, u *model.User) error {
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	if err := d.store().CreateUser(sctx, u); err != nil {
		return storeErr(err, "")
	}
	d.deps.Metrics.Registered(string(u.Role))
	d.log().Info("user registered", "user_id", u.ID, "role", u.Role, "status", u.Status)
	d.emit(ctx, queue.Event{Type: queue.EventUserRegistered, SubjectID: u.ID, Role: string(u.Role), Status: string(u.Status)})
	return nil
}

// Authenticate checks email and password.  Motivators awaiting approval
// get their own Forbidden message; any other non-active account is told
// it is inactive.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, newErr(Validation, "email and password are required")
	}
	sctx, cancel := d.bounded(ctx)
	u, err := d.store().GetUserByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			d.deps.Metrics.AuthFailed("unknown_email")
		}
		return nil, storeErr(err, "user does not exist")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		d.deps.Metrics.AuthFailed("bad_password")
		return nil, newErr(InvalidCredential, "invalid user credentials")
	}
	switch {
	case u.Status == model.UserStatusInactive:
		d.deps.Metrics.AuthFailed("inactive")
		return nil, newErr(Forbidden, "your account is inactive")
	case u.Status == model.UserStatusPending && u.Role == model.RoleMotivator:
		d.deps.Metrics.AuthFailed("pending")
		return nil, newErr(Forbidden, "your account is awaiting admin approval")
	case !u.IsActive():
		d.deps.Metrics.AuthFailed("inactive")
		return nil, newErr(Forbidden, "your account is inactive")
	}
	return u, nil
}

// Lookup loads the account behind a verified token.  It does not check
// status; callers gate on that per operation.
func (d *Directory) Lookup(ctx context.Context, id string) (*model.User, error) {
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	u, err := d.store().GetUserByID(sctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, wrapErr(Unauthorized, "account no longer exists", err)
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	return u, nil
}

// Me returns the caller's own account.
func (d *Directory) Me(ctx context.Context, actor *model.User) (*model.User, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	return d.get(ctx, actor.ID)
}

// Get returns an account to its owner or to an admin.
func (d *Directory) Get(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if !canSelfOrAdmin(actor, id) {
		return nil, newErr(Forbidden, "you do not have permission to view this user")
	}
	return d.get(ctx, id)
}

func (d *Directory) get(ctx context.Context, id string) (*model.User, error) {
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	u, err := d.store().GetUserByID(sctx, id)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	return u, nil
}

// List returns accounts matching f.  Admin only.
func (d *Directory) List(ctx context.Context, actor *model.User, f model.UserFilter) ([]*model.User, error) {
	if err := authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, newErr(Validation, "unknown role filter")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, newErr(Validation, "unknown status filter")
	}
	if f.Gender != "" && !f.Gender.Valid() {
		return nil, newErr(Validation, "unknown gender filter")
	}
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	users, err := d.store().ListUsers(sctx, f)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return users, nil
}

// SetStatus moves an account to any known status.  Admin only.
func (d *Directory) SetStatus(ctx context.Context, actor *model.User, targetID string, status model.UserStatus) (*model.User, error) {
	if err := authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, newErr(Validation, "status must be one of: active, inactive, pending")
	}
	return d.setStatus(ctx, actor, targetID, status)
}

func (d *Directory) setStatus(ctx context.Context, actor *model.User, targetID string, status model.UserStatus) (*model.User, error) {
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	u, err := d.store().UpdateUserStatus(sctx, targetID, status)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	d.deps.Metrics.StatusChanged(string(status))
	d.log().Info("user status changed", "user_id", targetID, "status", status, "by", actor.ID)
	d.emit(ctx, queue.Event{Type: queue.EventUserStatusChanged, ActorID: actor.ID, SubjectID: targetID,
		Role: string(u.Role), Status: string(status)})
	return u, nil
}

// ApproveMotivator activates a motivator.  Approving an already active
// motivator succeeds without a write.
func (d *Directory) ApproveMotivator(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	target, err := d.motivatorTarget(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if target.Status == model.UserStatusActive {
		return target, nil
	}
	return d.setStatus(ctx, actor, targetID, model.UserStatusActive)
}

// RejectMotivator deactivates a motivator.
func (d *Directory) RejectMotivator(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	if _, err := d.motivatorTarget(ctx, actor, targetID); err != nil {
		return nil, err
	}
	return d.setStatus(ctx, actor, targetID, model.UserStatusInactive)
}

func (d *Directory) motivatorTarget(ctx context.Context, actor *model.User, targetID string) (*model.User, error) {
	if err := authorize(actor, model.RoleAdmin); err != nil {
		return nil, err
	}
	target, err := d.get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role != model.RoleMotivator {
		return nil, newErr(Validation, "user is not a motivator")
	}
	return target, nil
}

// Delete hard-deletes an account.  Messages and responses that reference
// it are left in place and resolve to a bare id afterwards.
func (d *Directory) Delete(ctx context.Context, actor *model.User, targetID string) error {
	if err := authorize(actor, model.RoleAdmin); err != nil {
		return err
	}
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	if err := d.store().DeleteUser(sctx, targetID); err != nil {
		return storeErr(err, "user not found")
	}
	d.log().Info("user deleted", "user_id", targetID, "by", actor.ID)
	d.emit(ctx, queue.Event{Type: queue.EventUserDeleted, ActorID: actor.ID, SubjectID: targetID})
	return nil
}

// ChangePassword replaces the caller's password after checking the old one.
func (d *Directory) ChangePassword(ctx context.Context, actor *model.User, oldPassword, newPassword string) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if oldPassword == "" || newPassword == "" {
		return newErr(Validation, "old and new password are required")
	}
	if len(newPassword) < utils.MinPasswordLen {
		return newErr(Validation, "new password must be at least 8 characters")
	}
	current, err := d.get(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(current.PasswordHash, oldPassword) {
		return newErr(Validation, "old password is incorrect")
	}
	hash, err := utils.HashPassword(newPassword, d.cost)
	if err != nil {
		return wrapErr(Internal, "could not hash password", err)
	}
	sctx, cancel := d.bounded(ctx)
	defer cancel()
	return storeErr(d.store().UpdateUserPassword(sctx, actor.ID, hash), "user not found")
}

// DetailsInput is a self-service profile edit.  Nil fields are unchanged.
type DetailsInput struct {
	FullName     *string `json:"fullName" validate:"omitempty,min=1,max=120"`
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Bio          *string `json:"bio"`
	Specialities *string `json:"specialities"`
}

// UpdateDetails edits the caller's name, email, bio or specialities.  A
// new email must not belong to another account.
func (d *Directory) UpdateDetails(ctx context.Context, actor *model.User, in DetailsInput) (*model.User, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	for _, f := range []*string{in.FullName, in.Email, in.Bio, in.Specialities} {
		if f != nil {
			trim(f)
		}
	}
	if in.Email != nil {
		lower := strings.ToLower(*in.Email)
		in.Email = &lower
	}
	if in.FullName != nil && *in.FullName == "" {
		return nil, newErr(Validation, "fullName cannot be blank")
	}
	if in.Email != nil && *in.Email == "" {
		return nil, newErr(Validation, "email cannot be blank")
	}
	upd := model.ProfileUpdate{FullName: in.FullName, Email: in.Email, Bio: in.Bio, Specialities: in.Specialities}
	if upd.Empty() {
		return nil, newErr(Validation, "at least one field is required")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	sctx, cancel := d.bounded(ctx)
	defer cancel()
	u, err := d.store().UpdateUserProfile(sctx, actor.ID, upd)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	return u, nil
}

// UpdateProfilePhoto stores a new photo, points the account at it, and
// then removes the previous one.
func (d *Directory) UpdateProfilePhoto(ctx context.Context, actor *model.User, photo *Upload) (*model.User, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	if photo == nil || photo.Body == nil {
		return nil, newErr(Validation, "profile photo is required")
	}
	current, err := d.get(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	url, err := d.put(ctx, folderPhotos, photo)
	if err != nil {
		return nil, err
	}

	sctx, cancel := d.bounded(ctx)
	err = d.store().UpdateUserPhoto(sctx, actor.ID, url)
	cancel()
	if err != nil {
		d.discard(url)
		return nil, storeErr(err, "user not found")
	}
	d.discard(current.ProfilePhoto)

	current.ProfilePhoto = url
	return current, nil
}
