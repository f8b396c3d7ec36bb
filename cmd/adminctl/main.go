// Command adminctl is the operator CLI: it bootstraps administrators and
// works the motivator application queue against the configured store.
package main

import (
	"context"
	"os"

	"github.com/iliyamo/peer-support/internal/config"
	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/database"
	"github.com/iliyamo/peer-support/internal/service"
)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// openFromEnv connects to the store the server would use.  Attachments
// are never written from the CLI, so the content store is a stub.
func openFromEnv(ctx context.Context) (*app, error) {
	cfg := config.Load()
	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc := service.New(service.Deps{Store: store, Content: contentstore.NewMemory()}, service.Options{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		BcryptCost:    cfg.BcryptCost,
		StoreTimeout:  cfg.StoreTimeout,
	})
	return &app{svc: svc, store: store}, nil
}
