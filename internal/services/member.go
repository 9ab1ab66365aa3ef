package services

import (
	"context"
	"fmt"

	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// MemberService manages the owner's member directory, including photo
// uploads staged through the data-dir layout.
type MemberService struct {
	store  store.Store
	layout *assets.Layout
}

func NewMemberService(s store.Store, layout *assets.Layout) *MemberService {
	return &MemberService{store: s, layout: layout}
}

// MemberUpdate carries the optional fields of a member edit. Nil pointers
// leave the stored value untouched; an empty PhotoB64 keeps the photo.
type MemberUpdate struct {
	Name      *string
	Phone     *string
	Role      *model.MemberRole
	Permitted *bool
	PhotoB64  string
}

// Create registers a new member for the owner. New members are permitted by
// default; the role falls back to family when empty.
func (s *MemberService) Create(ctx context.Context, ownerID, name, phone string, role model.MemberRole, photoB64 string) (*model.Member, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: member name is required", model.ErrValidation)
	}
	if role == "" {
		role = model.MemberFamily
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown member role %q", model.ErrValidation, role)
	}
	member, err := s.store.Members().Create(ctx, &model.Member{
		OwnerID:   ownerID,
		Name:      name,
		Phone:     phone,
		Role:      role,
		Permitted: true,
	})
	if err != nil {
		return nil, err
	}
	if photoB64 != "" {
		if member, err = s.attachPhoto(ctx, member, photoB64); err != nil {
			return nil, err
		}
	}
	return member, nil
}

func (s *MemberService) Get(ctx context.Context, ownerID, memberID string) (*model.Member, error) {
	return s.store.Members().Get(ctx, ownerID, memberID)
}

func (s *MemberService) List(ctx context.Context, ownerID string) ([]*model.Member, error) {
	return s.store.Members().List(ctx, ownerID)
}

// Update applies the provided fields and returns the stored member.
func (s *MemberService) Update(ctx context.Context, ownerID, memberID string, upd MemberUpdate) (*model.Member, error) {
	member, err := s.store.Members().Get(ctx, ownerID, memberID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		member.Name = *upd.Name
	}
	if upd.Phone != nil {
		member.Phone = *upd.Phone
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown member role %q", model.ErrValidation, *upd.Role)
		}
		member.Role = *upd.Role
	}
	if upd.Permitted != nil {
		member.Permitted = *upd.Permitted
	}
	if member, err = s.store.Members().Update(ctx, member); err != nil {
		return nil, err
	}
	if upd.PhotoB64 != "" {
		if member, err = s.attachPhoto(ctx, member, upd.PhotoB64); err != nil {
			return nil, err
		}
	}
	return member, nil
}

func (s *MemberService) Delete(ctx context.Context, ownerID, memberID string) error {
	return s.store.Members().Delete(ctx, ownerID, memberID)
}

func (s *MemberService) attachPhoto(ctx context.Context, member *model.Member, photoB64 string) (*model.Member, error) {
	path, err := s.layout.WriteMemberPhoto(member.MemberID, photoB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if err := s.store.Members().SetPhoto(ctx, member.OwnerID, member.MemberID, path); err != nil {
		return nil, err
	}
	member.PhotoPath = path
	return member, nil
}
