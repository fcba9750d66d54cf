package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"backend-eventmap/internal/active"
	"backend-eventmap/internal/auth"
	"backend-eventmap/internal/collection"
	"backend-eventmap/internal/db"
	"backend-eventmap/internal/event"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventctl",
		Short:         "Administer the event map",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newUserCmd(),
		newActiveCmd(),
		newCollectionCmd(),
		newImportCmd(),
	)
	return root
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	if s.close != nil {
		defer s.close()
	}
	return fn(ctx, s)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := db.Migrate(ctx, s.db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}

	var role string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account, prompting for its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				if role == "" {
					role = s.cfg.AdminRole
				}
				u, err := auth.NewService(s.cfg.JWTSecret, s.db).CreateUser(ctx, args[0], password, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) with role %s\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", "", "role claim of the account (defaults to ADMIN_ROLE)")

	user.AddCommand(add)
	return user
}

func newActiveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "active", Short: "Show or move the collection served to readers"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the active collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				name, err := active.NewService(s.db, s.cfg.DefaultCollection, s.notifier).Get(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <collection>",
		Short: "Make a collection the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				name, err := active.NewService(s.db, s.cfg.DefaultCollection, s.notifier).Set(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active collection is now %s\n", name)
				return nil
			})
		},
	})
	return cmd
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "collection", Short: "Manage collections"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collection names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				names, err := collection.NewService(s.db, s.notifier).List(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := collection.NewService(s.db, s.notifier).Create(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created collection %s\n", c.Name)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and all of its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := collection.NewService(s.db, s.notifier).Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <collection> <file.json>",
		Short: "Append the events of a JSON array file to a collection",
		Long: `Events are inserted in file order. The import stops at the first event that
cannot be stored; events before it stay in the collection.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var items []event.Input
			if err := json.Unmarshal(raw, &items); err != nil {
				return errors.Wrapf(err, "parse %s", args[1])
			}
			if len(items) == 0 {
				return errors.Errorf("%s holds no events", args[1])
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				svc := event.NewService(s.db, s.geocoder, s.notifier, s.cfg.ProximityMeters)
				res := svc.BulkCreate(ctx, args[0], items)

				out := cmd.OutOrStdout()
				for _, item := range res.Items {
					switch item.Status {
					case event.BulkCreated:
						fmt.Fprintf(out, "%4d  created  #%d %s\n", item.Index, item.Event.ID, item.Event.Title)
					case event.BulkFailed:
						fmt.Fprintf(out, "%4d  failed   %s\n", item.Index, item.Error)
					default:
						fmt.Fprintf(out, "%4d  skipped\n", item.Index)
					}
				}
				if res.FailedIndex != nil {
					return errors.Errorf("import stopped at item %d, %d of %d events stored",
						*res.FailedIndex, len(res.Created), len(items))
				}
				return nil
			})
		},
	}
}
