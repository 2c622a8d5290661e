package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/bugit/internal/bugs"
	"github.com/satyaki-up/bugit/internal/launchpad"
)

func newSearchCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "search <tag>",
		Short: "List a project's bugs carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			results, err := as.Search(ctx, a.project(project), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				a.printJSON(results)
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(a.stdout, "#%d\t%s\t%s\t%s\n", r.Bug.ID, r.Summary.Status, r.Summary.Importance, r.Bug.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "launchpad project (default from config)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <bug>",
		Short: "Show a bug and its first task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			bug, summary, err := as.FetchByID(ctx, id)
			if err != nil {
				return err
			}
			if a.jsonOut {
				a.printJSON(bugs.Result{Bug: bug, Summary: summary})
				return nil
			}
			a.printSummary(bug, summary)
			return nil
		},
	}
}

type reportFlags struct {
	project         string
	title           string
	description     string
	descriptionFile string
	tags            string
	series          string
	assignee        string
	status          string
	importance      string
}

func (f *reportFlags) bind(cmd *cobra.Command, full bool) {
	fl := cmd.Flags()
	if full {
		fl.StringVarP(&f.project, "project", "p", "", "launchpad project (default from config)")
		fl.StringVarP(&f.title, "title", "t", "", "bug title")
		fl.StringVarP(&f.description, "description", "d", "", "bug description")
		fl.StringVar(&f.descriptionFile, "description-file", "", "read the description from a file")
		fl.StringVarP(&f.series, "series", "s", "", "project series to target")
	}
	fl.StringVar(&f.tags, "tags", "", "space or comma separated tags")
	fl.StringVarP(&f.assignee, "assignee", "a", "", "launchpad user name")
	fl.StringVar(&f.status, "status", "", "task status, e.g. confirmed or \"In Progress\"")
	fl.StringVar(&f.importance, "importance", "", "task importance, e.g. high")
}

func (f *reportFlags) report(a *app) (bugs.Report, error) {
	status, err := bugs.ParseStatus(f.status)
	if err != nil {
		return bugs.Report{}, err
	}
	importance, err := bugs.ParseImportance(f.importance)
	if err != nil {
		return bugs.Report{}, err
	}
	description := f.description
	if f.descriptionFile != "" {
		if description != "" {
			return bugs.Report{}, fmt.Errorf("%w: --description and --description-file are exclusive", bugs.ErrInvalidInput)
		}
		data, err := os.ReadFile(f.descriptionFile)
		if err != nil {
			return bugs.Report{}, err
		}
		description = string(data)
	}
	return bugs.Report{
		Title:       f.title,
		Description: description,
		Tags:        bugs.ParseTags(strings.ReplaceAll(f.tags, ",", " ")),
		Project:     a.project(f.project),
		Series:      f.series,
		Assignee:    f.assignee,
		Status:      status,
		Importance:  importance,
	}, nil
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		rf      reportFlags
		bugID   int
		attachs []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a bug, or overwrite an existing one with --bug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := rf.report(a)
			if err != nil {
				return err
			}
			files, err := readFiles(attachs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			existing, err := a.fetchOptional(cmd, as, bugID)
			if err != nil {
				return err
			}
			bug, bugURL, err := as.CreateOrUpdate(ctx, existing, report)
			if err != nil {
				return err
			}
			if len(files) > 0 {
				if err := as.Attach(ctx, bug, files); err != nil {
					return err
				}
			}
			if a.jsonOut {
				a.printJSON(map[string]any{"id": bug.ID, "url": bugURL})
				return nil
			}
			fmt.Fprintln(a.stdout, bugURL)
			return nil
		},
	}
	rf.bind(cmd, true)
	cmd.Flags().IntVar(&bugID, "bug", 0, "existing bug number to overwrite")
	cmd.Flags().StringSliceVar(&attachs, "attach", nil, "file to attach (repeatable)")
	return cmd
}

func (a *app) fetchOptional(cmd *cobra.Command, as *bugs.Assistant, id int) (*launchpad.Bug, error) {
	if !cmd.Flags().Changed("bug") {
		return nil, nil
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: bug number must be positive", bugs.ErrInvalidInput)
	}
	bug, _, err := as.FetchByID(cmd.Context(), id)
	return bug, err
}

func newUpdateCmd(a *app) *cobra.Command {
	var rf reportFlags
	cmd := &cobra.Command{
		Use:   "update <bug>",
		Short: "Change tags, assignee, status or importance of a bug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return err
			}
			report, err := rf.report(a)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			bug, _, err := as.FetchByID(ctx, id)
			if err != nil {
				return err
			}
			bug, bugURL, err := as.Update(ctx, bug, report)
			if err != nil {
				return err
			}
			if a.jsonOut {
				a.printJSON(map[string]any{"id": bug.ID, "url": bugURL})
				return nil
			}
			fmt.Fprintln(a.stdout, bugURL)
			return nil
		},
	}
	rf.bind(cmd, false)
	return cmd
}

func newAttachCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <bug> <file>...",
		Short: "Upload files to a bug",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return err
			}
			files, err := readFiles(args[1:])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			bug, _, err := as.FetchByID(ctx, id)
			if err != nil {
				return err
			}
			if err := as.Attach(ctx, bug, files); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, as.BugURL(bug.ID))
			return nil
		},
	}
}

func newCommentCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "comment <bug> [text]",
		Short: "Add a comment to a bug",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return err
			}
			var text string
			switch {
			case len(args) == 2 && file != "":
				return fmt.Errorf("%w: give the comment as text or --file, not both", bugs.ErrInvalidInput)
			case len(args) == 2:
				text = args[1]
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(data)
			}

			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			bug, _, err := as.FetchByID(ctx, id)
			if err != nil {
				return err
			}
			if err := as.Comment(ctx, bug, text); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, as.BugURL(bug.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the comment from a file")
	return cmd
}

func (a *app) project(flag string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	return a.cfg.Project
}

func parseBugID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid bug number %q", bugs.ErrInvalidInput, raw)
	}
	return id, nil
}

// readFiles loads each path keyed by its base name.
func readFiles(paths []string) (map[string][]byte, error) {
	files := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(p)
		if _, dup := files[name]; dup {
			return nil, fmt.Errorf("%w: two attachments named %s", bugs.ErrInvalidInput, name)
		}
		files[name] = data
	}
	return files, nil
}
