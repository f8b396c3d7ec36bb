package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/peer-support/internal/model"
	"github.com/iliyamo/peer-support/internal/repository"
	"github.com/iliyamo/peer-support/internal/service"
)

type app struct {
	svc   *service.Service
	store repository.Store
}

type opener func(ctx context.Context) (*app, error)

func newRootCmd(open opener) *cobra.Command {
	var a *app
	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Operate the peer-support service",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = open(cmd.Context())
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a != nil {
				return a.store.Close()
			}
			return nil
		},
	}
	get := func() *app { return a }
	root.AddCommand(newCreateAdminCmd(get), newListPendingCmd(get), newDecideCmd(get, true), newDecideCmd(get, false))
	return root
}

func newCreateAdminCmd(get func() *app) *cobra.Command {
	var in service.AdminInput
	var gender string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account.  Administrators cannot register
through the API.  The password is read from --password or ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			in.Gender = model.Gender(gender)
			u, err := get().svc.Directory.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return cliErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prefer ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&gender, "gender", string(model.GenderOther), "male, female or other")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newListPendingCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-pending",
		Short: "List motivator applications awaiting approval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := get().store.ListUsers(cmd.Context(), model.UserFilter{
				Role: model.RoleMotivator, Status: model.UserStatusPending,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tGENDER\tAPPLIED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, u.Gender,
					u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

// newDecideCmd builds approve or reject.  Both act as the admin named by
// --as so the decision is attributed in logs and events.
func newDecideCmd(get func() *app, approve bool) *cobra.Command {
	var as string
	use, short := "reject <user-id>", "Reject a motivator application"
	if approve {
		use, short = "approve <user-id>", "Approve a motivator application"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			admin, err := a.store.GetUserByEmail(cmd.Context(), as)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("no account with email %q", as)
			}
			if err != nil {
				return err
			}
			decide := a.svc.Directory.RejectMotivator
			if approve {
				decide = a.svc.Directory.ApproveMotivator
			}
			u, err := decide(cmd.Context(), admin, args[0])
			if err != nil {
				return cliErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "email of the acting administrator")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func cliErr(err error) error {
	return fmt.Errorf("%s: %s", service.KindOf(err), service.PublicMessage(err))
}
