package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tissuecore/pkg/domain"
)

// defaultOperationTypes are the operation types the request services look up
// by name.
var defaultOperationTypes = []domain.OperationType{
	{Name: domain.OpRelease, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
	{Name: domain.OpDestroy, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
	{Name: domain.OpCleanOut, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
	{Name: domain.OpSection, Flags: []domain.OperationTypeFlag{domain.FlagSourceIsBlock}},
	{Name: domain.OpTransfer},
	{Name: domain.OpReagentTransfer, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
}

type seedOptions struct {
	admins []string
	users  []string
	works  []string
}

func newSeedCommand(a *app) *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Create the default operation types, users and works",
		Long:         "Create the default operation types plus any named users and works. Existing rows are left alone.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := a.openAdminServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svcs.Close()
			created, err := seed(cmd.Context(), svcs.svc.Store(), opts)
			if err != nil {
				return err
			}
			a.logger.Infow("seed complete", "created", created)
			fmt.Fprintf(cmd.OutOrStdout(), "created %d rows\n", created)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.admins, "admin", nil, "usernames to create with the admin role")
	cmd.Flags().StringSliceVar(&opts.users, "user", nil, "usernames to create with the normal role")
	cmd.Flags().StringSliceVar(&opts.works, "work", nil, "active work numbers to create")
	return cmd
}

// seed inserts whatever is missing in one transaction and reports how many
// rows it created.
func seed(ctx context.Context, store domain.PersistentStore, opts seedOptions) (int, error) {
	created := 0
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, ot := range defaultOperationTypes {
			if _, ok := tx.FindOperationType(ot.Name); ok {
				continue
			}
			if _, err := tx.CreateOperationType(ot); err != nil {
				return err
			}
			created++
		}
		users := make([]domain.User, 0, len(opts.admins)+len(opts.users))
		for _, name := range opts.admins {
			users = append(users, domain.User{Username: name, Role: domain.RoleAdmin})
		}
		for _, name := range opts.users {
			users = append(users, domain.User{Username: name, Role: domain.RoleNormal})
		}
		for _, u := range users {
			if _, ok := tx.FindUser(u.Username); ok {
				continue
			}
			if _, err := tx.CreateUser(u); err != nil {
				return err
			}
			created++
		}
		for _, wn := range opts.works {
			if _, ok := tx.FindWork(wn); ok {
				continue
			}
			if _, err := tx.CreateWork(domain.Work{WorkNumber: wn, Status: domain.WorkActive}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	return created, err
}
