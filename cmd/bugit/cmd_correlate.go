package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satyaki-up/bugit/internal/bugs"
	"github.com/satyaki-up/bugit/internal/correlate"
)

func newCorrelateCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "correlate [cid]...",
		Short: "Group CIDs by the bugs tagged with them",
		Long: `correlate searches the project once per CID and prints, per bug, the
CIDs whose tag it carries together with the failure rate section of its
description. CIDs default to the "cids" list of .bugit.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cids := parseCIDs(args)
			if len(cids) == 0 {
				cids = parseCIDs(a.cfg.CIDs)
			}
			if len(cids) == 0 {
				return fmt.Errorf("%w: no CIDs given", bugs.ErrInvalidInput)
			}
			p := a.project(project)
			if p == "" {
				return fmt.Errorf("%w: project is required", bugs.ErrInvalidInput)
			}

			ctx := cmd.Context()
			as, err := a.assistant(ctx)
			if err != nil {
				return err
			}
			records, err := correlate.New(as, as.Environment(), a.logger).Run(ctx, p, cids)
			if err != nil {
				return err
			}
			if a.jsonOut {
				a.printJSON(records)
				return nil
			}
			for _, n := range correlate.BugNumbers(records) {
				r := records[n]
				fmt.Fprintf(a.stdout, "%s\t%s\t%s", r.Link, r.Title, strings.Join(r.CIDs, ","))
				if r.FailureRate != "" {
					fmt.Fprintf(a.stdout, "\t%s", strings.Join(strings.Fields(r.FailureRate), " "))
				}
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "launchpad project (default from config)")
	return cmd
}

// parseCIDs accepts CIDs as separate values or comma separated lists.
func parseCIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, cid := range strings.Split(v, ",") {
			if cid = strings.TrimSpace(cid); cid != "" {
				out = append(out, cid)
			}
		}
	}
	return out
}
