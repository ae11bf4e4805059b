package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
)

func boardCmd() *cobra.Command {
	b := &cobra.Command{Use: "board", Short: "Show boards"}
	b.AddCommand(boardShowCmd())
	return b
}

func boardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the selected project's board",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				board, err := a.Engine.Board(ctx, cliActor(), id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				printBoard(board)
				return nil
			})
		},
	}
}

func printBoard(b domain.Board) {
	header := color.New(color.FgHiBlue, color.Bold)
	muted := color.New(color.FgHiBlack)
	for _, sec := range b.Sections {
		marker := ""
		if sec.IsDefault {
			marker = muted.Sprint(" [default]")
		}
		fmt.Printf("%s %s%s\n", header.Sprintf("%d. %s", sec.Order, sec.Name), muted.Sprintf("(%d)", len(sec.Tasks)), marker)
		if len(sec.Tasks) == 0 {
			fmt.Println(muted.Sprint("   no tasks"))
			fmt.Println()
			continue
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"#", "ID", "Title", "Status", "Assignee"})
		for _, t := range sec.Tasks {
			tw.AppendRow(table.Row{t.Order, t.ID, t.Title, statusColor(t.Status).Sprint(t.Status), assigneeNames(t)})
		}
		tw.Render()
		fmt.Println()
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case "completed":
		return color.New(color.FgHiGreen)
	case "in_progress":
		return color.New(color.FgYellow)
	case "on_hold":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// assigneeNames prefers resolved names and falls back to raw ids.
func assigneeNames(t domain.TaskCard) string {
	resolved := make(map[string]string, len(t.AssigneeInfo))
	for _, u := range t.AssigneeInfo {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = u.Email
		}
		resolved[u.ID] = name
	}
	out := make([]string, 0, len(t.Assignee))
	for _, id := range t.Assignee {
		if name, ok := resolved[id]; ok && name != "" {
			out = append(out, name)
			continue
		}
		out = append(out, id)
	}
	return strings.Join(out, ", ")
}

func sectionCmd() *cobra.Command {
	s := &cobra.Command{Use: "section", Short: "Manage board sections"}
	s.AddCommand(sectionListCmd())
	s.AddCommand(sectionCreateCmd())
	s.AddCommand(sectionUpdateCmd())
	s.AddCommand(sectionDeleteCmd())
	return s
}

func sectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sections of the selected project",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListSections(ctx, cliActor(), id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "ID", "Name", "Default"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.Order, s.ID, s.Name, s.IsDefault})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func sectionCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Append a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				sec, err := a.Engine.CreateSection(ctx, cliActor(), id, name)
				if err != nil {
					return err
				}
				return printJSONOrMessage(sec, fmt.Sprintf("created section %s (%s) at order %d", sec.Name, sec.ID, sec.Order))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "section name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func sectionUpdateCmd() *cobra.Command {
	var name string
	var order int
	cmd := &cobra.Command{
		Use:     "update <section-id>",
		Aliases: []string{"rename"},
		Short:   "Rename or reorder a section",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.SectionUpdate{Name: optionalString(cmd, "name", name)}
			if cmd.Flags().Changed("order") {
				in.Order = &order
			}
			if in.Name == nil && in.Order == nil {
				return fmt.Errorf("--name or --order is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				sec, err := a.Engine.UpdateSection(ctx, cliActor(), args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrMessage(sec, fmt.Sprintf("section %s is now %q at order %d", sec.ID, sec.Name, sec.Order))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().IntVar(&order, "order", 0, "new order (siblings are not renumbered)")
	return cmd
}

func sectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete an empty, non-default section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteSection(ctx, cliActor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted section", args[0])
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskMoveCmd())
	t.AddCommand(taskDeleteCmd())
	t.AddCommand(taskHistoryCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var assignee []string
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task at the end of a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := projectID()
			if err != nil {
				return err
			}
			opts.ProjectID = id
			opts.Assignee = domain.NewAssigneeSet(assignee...)
			opts.DueDate = optionalString(cmd, "due", due)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				card, err := a.Engine.CreateTask(ctx, cliActor(), opts)
				if err != nil {
					return err
				}
				return printJSONOrMessage(card, fmt.Sprintf("created task %s at order %d", card.ID, card.Order))
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.SectionID, "section", "", "section id (first section if omitted)")
	cmd.Flags().StringArrayVar(&assignee, "assignee", nil, "assignee user id (repeatable)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status key (default status if omitted)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				card, err := a.Engine.GetTask(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(card)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, priority, due string
	var assignee []string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields; a status change is appended to its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ProjectID:   strings.TrimSpace(viper.GetString("project")),
				TaskID:      args[0],
				Title:       optionalString(cmd, "title", title),
				Description: optionalString(cmd, "description", description),
				Status:      optionalString(cmd, "status", status),
				Priority:    optionalString(cmd, "priority", priority),
				DueDate:     optionalString(cmd, "due", due),
			}
			if cmd.Flags().Changed("assignee") {
				set := domain.NewAssigneeSet(assignee...)
				opts.Assignee = &set
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				card, err := a.Engine.UpdateTask(ctx, cliActor(), opts)
				if err != nil {
					return err
				}
				return printJSONOrMessage(card, fmt.Sprintf("updated task %s (%s)", card.ID, card.Status))
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status key")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&due, "due", "", "due date (empty clears)")
	cmd.Flags().StringArrayVar(&assignee, "assignee", nil, "assignee user id (repeatable, replaces the set)")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	var section string
	var order int
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task to a section and position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.MoveOptions{
				TaskID:    args[0],
				SectionID: optionalString(cmd, "section", section),
				Order:     order,
				ProjectID: strings.TrimSpace(viper.GetString("project")),
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				card, err := a.Engine.MoveTask(ctx, cliActor(), opts)
				if err != nil {
					return err
				}
				sid := ""
				if card.SectionID != nil {
					sid = *card.SectionID
				}
				return printJSONOrMessage(card, fmt.Sprintf("task %s is at order %d in section %s", card.ID, card.Order, sid))
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "target section id (current section if omitted)")
	cmd.Flags().IntVar(&order, "order", 0, "target position, 0-based")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteTask(ctx, cliActor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted task", args[0])
				return nil
			})
		},
	}
}

func taskHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <task-id>",
		Short: "Show a task's status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.TaskHistory(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Timestamp", "Status", "Changed By"})
				for _, h := range items {
					tw.AppendRow(table.Row{h.Timestamp, h.Status, h.ChangedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
}
