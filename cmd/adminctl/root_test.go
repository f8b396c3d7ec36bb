package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository/memstore"
	"github.com/iliyamo/peer-support/internal/service"
)

func newTestApp() *app {
	store := memstore.New()
	svc := service.New(service.Deps{Store: store, Content: contentstore.NewMemory()}, service.Options{
		AccessSecret: "a", RefreshSecret: "r", BcryptCost: bcrypt.MinCost,
	})
	return &app{svc: svc, store: store}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func(context.Context) (*app, error) { return a, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateAdminAndDecide(t *testing.T) {
	a := newTestApp()
	ctx := context.Background()

	out, err := run(t, a, "create-admin", "--name", "Root", "--email", "root@x.io", "--password", "rootpass1")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin root@x.io")

	m, err := a.svc.Directory.Register(ctx, service.RegisterInput{
		Role: model.RoleMotivator, FullName: "Mo", Email: "mo@x.io", Password: "password1",
		Gender: model.GenderFemale, Bio: "b", Experience: "e", Specialities: "s", Reason: "r",
		Photo: &service.Upload{Name: "p.png", Body: strings.NewReader("png")},
	})
	require.NoError(t, err)

	out, err = run(t, a, "list-pending")
	require.NoError(t, err)
	assert.Contains(t, out, "mo@x.io")

	_, err = run(t, a, "approve", m.ID)
	require.Error(t, err, "--as is required")

	_, err = run(t, a, "approve", m.ID, "--as", "nobody@x.io")
	require.Error(t, err)

	out, err = run(t, a, "approve", m.ID, "--as", "root@x.io")
	require.NoError(t, err)
	assert.Contains(t, out, "mo@x.io is now active")

	out, err = run(t, a, "list-pending")
	require.NoError(t, err)
	assert.NotContains(t, out, "mo@x.io")
}

func TestCreateAdminRejectsShortPassword(t *testing.T) {
	_, err := run(t, newTestApp(), "create-admin", "--name", "Root", "--email", "root@x.io", "--password", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}
