package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/repo"
)

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	var assignee []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Assignee = domain.NewAssigneeSet(assignee...)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.CreateProject(ctx, cliActor(), opts)
				if err != nil {
					return err
				}
				return printJSONOrMessage(p, "created project "+p.ID)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.OrgID, "org", "", "organization id")
	cmd.Flags().StringArrayVar(&assignee, "assignee", nil, "member user id (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListProjects(ctx, cliActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Org", "Members"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.OrgID, strings.Join(p.Assignee, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.GetProject(ctx, cliActor(), id)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name string
	var assignee []string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rename the selected project or replace its members",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			opts := engine.ProjectUpdateOptions{Name: optionalString(cmd, "name", name)}
			if cmd.Flags().Changed("assignee") {
				set := domain.NewAssigneeSet(assignee...)
				opts.Assignee = &set
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Engine.UpdateProject(ctx, cliActor(), id, opts)
				if err != nil {
					return err
				}
				return printJSONOrMessage(p, "updated project "+p.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringArrayVar(&assignee, "assignee", nil, "member user id (repeatable, replaces the set)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the selected project with its board",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteProject(ctx, cliActor(), id); err != nil {
					return err
				}
				fmt.Println("deleted project", id)
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage the user directory"}
	u.AddCommand(userAddCmd())
	u.AddCommand(userListCmd())
	return u
}

func userAddCmd() *cobra.Command {
	var in domain.User
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or refresh a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.UpsertUser(ctx, cliActor(), in)
				if err != nil {
					return err
				}
				return printJSONOrMessage(u, "saved user "+u.ID)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "user id (random UUID if omitted)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.PhotoURL, "photo-url", "", "avatar URL")
	cmd.Flags().StringVar(&in.Role, "role", "member", "role")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, strings.TrimSpace(u.FirstName + " " + u.LastName), u.Email, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	k.AddCommand(apiKeyCreateCmd())
	k.AddCommand(apiKeyListCmd())
	k.AddCommand(apiKeyRevokeCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var userID, role, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.Engine.Repo.GetUser(ctx, nil, userID); err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return domain.NotFoundError{Entity: "user", ID: userID}
					}
					return err
				}
				secret := "tbk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
				key := domain.APIKey{
					ID:      uuid.NewString(),
					UserID:  userID,
					Role:    role,
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := a.Engine.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				return printJSONOrMessage(map[string]string{"id": key.ID, "key": secret}, fmt.Sprintf("created key %s for %s: %s", key.ID, userID, secret))
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().StringVar(&role, "role", "member", "role granted by the key")
	cmd.Flags().StringVar(&name, "name", "", "label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Role", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.UserID, k.Role, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events of the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListEvents(ctx, cliActor(), repo.EventFilter{
					ProjectID:  id,
					Type:       evtType,
					EntityKind: entityKind,
					EntityID:   entityID,
					Limit:      n,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}
