package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/publisher"
	"github.com/iliyamo/peer-support/internal/repository"
	"github.com/iliyamo/peer-support/internal/repository/memstore"
)

type fixture struct {
	svc     *Service
	store   *memstore.Store
	content *contentstore.Memory
	events  *publisher.Recorder
	opts    Options
	admin   *model.User
}

func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(),
		content: contentstore.NewMemory(),
		events:  &publisher.Recorder{},
	}
	opts := Options{
		AccessSecret:          "access-secret",
		RefreshSecret:         "refresh-secret",
		BcryptCost:            bcrypt.MinCost,
		StrictMessageStatus:   true,
		AdminSeesAllResponses: true,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	f.opts = opts
	f.svc = New(Deps{Store: f.store, Content: f.content, Events: f.events}, opts)

	admin, err := f.svc.Directory.CreateAdmin(context.Background(), AdminInput{
		FullName: "Root", Email: "root@example.com", Password: "rootpass1", Gender: model.GenderOther,
	})
	require.NoError(t, err)
	f.admin = admin
	return f
}

// over builds a second service on top of s, which usually wraps f.store
// to interleave a write at a chosen point.
func (f *fixture) over(s repository.Store) *Service {
	return New(Deps{Store: s, Content: f.content, Events: f.events}, f.opts)
}

func photo() *Upload {
	return &Upload{Name: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func clientInput(email string, g model.Gender) RegisterInput {
	return RegisterInput{
		Role: model.RoleClient, FullName: "Client " + email, Email: email,
		Password: "password1", Gender: g, Photo: photo(),
	}
}

func motivatorInput(email string, g model.Gender) RegisterInput {
	return RegisterInput{
		Role: model.RoleMotivator, FullName: "Motivator " + email, Email: email,
		Password: "password1", Gender: g, Bio: "bio", Experience: "5 years",
		Specialities: "grief", Reason: "to help", Photo: photo(),
	}
}

func (f *fixture) client(t *testing.T, email string, g model.Gender) *model.User {
	t.Helper()
	u, err := f.svc.Directory.Register(context.Background(), clientInput(email, g))
	require.NoError(t, err)
	return u
}

// motivator registers and approves a motivator.
func (f *fixture) motivator(t *testing.T, email string, g model.Gender) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.svc.Directory.Register(ctx, motivatorInput(email, g))
	require.NoError(t, err)
	u, err = f.svc.Directory.ApproveMotivator(ctx, f.admin, u.ID)
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, author *model.User, content string) *model.MessageView {
	t.Helper()
	v, err := f.svc.Messaging.CreateMessage(context.Background(), author, CreateMessageInput{Content: content})
	require.NoError(t, err)
	return v
}

func requireKind(t *testing.T, err error, k Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, k.String(), KindOf(err).String(), "error: %v", err)
}
