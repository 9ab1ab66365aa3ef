package services

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"

	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/model"
)

func newMemberFixture(t *testing.T) (*MemberService, string) {
	t.Helper()
	st := newTestStore(t)
	layout := assets.NewLayout(t.TempDir())
	if err := layout.Ensure(); err != nil {
		t.Fatalf("layout Ensure: %v", err)
	}
	owner, err := st.Owners().Create(context.Background(), &model.Owner{
		Username: "asha", PasswordHash: "x", Salt: "y",
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return NewMemberService(st, layout), owner.OwnerID
}

func TestMemberCreateDefaults(t *testing.T) {
	svc, ownerID := newMemberFixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ownerID, "Ravi", "555-0100", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Role != model.MemberFamily {
		t.Fatalf("default role: got %s", m.Role)
	}
	if !m.Permitted {
		t.Fatal("new members should be permitted")
	}

	if _, err := svc.Create(ctx, ownerID, "", "", "", ""); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("empty name: got %v, want ErrValidation", err)
	}
	if _, err := svc.Create(ctx, ownerID, "Eve", "", "burglar", ""); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("bad role: got %v, want ErrValidation", err)
	}
}

func TestMemberPhotoUpload(t *testing.T) {
	svc, ownerID := newMemberFixture(t)
	ctx := context.Background()

	photo := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	m, err := svc.Create(ctx, ownerID, "Ravi", "", model.MemberStaff, photo)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.PhotoPath == "" {
		t.Fatal("photo path not recorded")
	}
	if _, err := os.Stat(m.PhotoPath); err != nil {
		t.Fatalf("photo file: %v", err)
	}

	got, err := svc.Get(ctx, ownerID, m.MemberID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PhotoPath != m.PhotoPath {
		t.Fatalf("stored photo path: got %q, want %q", got.PhotoPath, m.PhotoPath)
	}
}

func TestMemberUpdatePartial(t *testing.T) {
	svc, ownerID := newMemberFixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ownerID, "Ravi", "555-0100", model.MemberFamily, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	permitted := false
	role := model.MemberFrequentVisitor
	updated, err := svc.Update(ctx, ownerID, m.MemberID, MemberUpdate{
		Role:      &role,
		Permitted: &permitted,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Ravi" || updated.Phone != "555-0100" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.Role != model.MemberFrequentVisitor || updated.Permitted {
		t.Fatalf("updated fields: %+v", updated)
	}

	if _, err := svc.Update(ctx, ownerID, "nope", MemberUpdate{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown member: got %v, want ErrNotFound", err)
	}
}

func TestMemberDelete(t *testing.T) {
	svc, ownerID := newMemberFixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, ownerID, "Ravi", "", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, ownerID, m.MemberID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, ownerID, m.MemberID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, ownerID, m.MemberID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
}
