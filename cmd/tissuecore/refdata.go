package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tissuecore/internal/core"
	"tissuecore/pkg/domain"
)

// refTable is one reference data table as the CLI sees it.
type refTable interface {
	add(ctx context.Context, user, key string) (any, error)
	setEnabled(ctx context.Context, user, key string, enabled bool) (any, error)
	list(ctx context.Context, includeDisabled bool) ([]any, error)
}

type adminTable[T any] struct {
	svc *core.AdminService[T]
}

func (t adminTable[T]) add(ctx context.Context, user, key string) (any, error) {
	return t.svc.Add(ctx, user, key)
}

func (t adminTable[T]) setEnabled(ctx context.Context, user, key string, enabled bool) (any, error) {
	return t.svc.SetEnabled(ctx, user, key, enabled)
}

func (t adminTable[T]) list(ctx context.Context, includeDisabled bool) ([]any, error) {
	items, err := t.svc.List(ctx, includeDisabled)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

func refTables(svc *core.Service) map[string]refTable {
	return map[string]refTable{
		"destinations":    adminTable[domain.ReleaseDestination]{svc.Destinations},
		"recipients":      adminTable[domain.ReleaseRecipient]{svc.Recipients},
		"reasons":         adminTable[domain.DestructionReason]{svc.Reasons},
		"operation-types": adminTable[domain.OperationType]{svc.OperationTypes},
	}
}

func tableNames() string {
	names := make([]string, 0, 4)
	for name := range refTables(&core.Service{}) {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// withTable opens the store, resolves the named table and runs fn.
func (a *app) withTable(cmd *cobra.Command, name string, fn func(refTable) error) error {
	svcs, err := a.openAdminServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()
	table, ok := refTables(svcs.svc)[name]
	if !ok {
		return fmt.Errorf("unknown table %q, expected one of %s", name, tableNames())
	}
	return fn(table)
}

func newRefdataCommand(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "refdata",
		Short: "Manage reference data (" + tableNames() + ")",
	}
	cmd.PersistentFlags().StringVar(&user, "as", "", "admin username performing the change")

	add := &cobra.Command{
		Use:          "add <table> <key>",
		Short:        "Add an enabled row",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTable(cmd, args[0], func(t refTable) error {
				item, err := t.add(cmd.Context(), user, args[1])
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(item)
			})
		},
	}

	setEnabled := &cobra.Command{
		Use:          "set-enabled <table> <key> <true|false>",
		Short:        "Enable or disable a row",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("enabled flag %q: %w", args[2], err)
			}
			return a.withTable(cmd, args[0], func(t refTable) error {
				item, err := t.setEnabled(cmd.Context(), user, args[1], enabled)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(item)
			})
		},
	}

	var all bool
	list := &cobra.Command{
		Use:          "list <table>",
		Short:        "List rows as JSON lines",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTable(cmd, args[0], func(t refTable) error {
				items, err := t.list(cmd.Context(), all)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, item := range items {
					if err := enc.Encode(item); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include disabled rows")

	cmd.AddCommand(add, setEnabled, list)
	return cmd
}
