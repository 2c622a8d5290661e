// Package correlate groups device CIDs by the Launchpad bugs tagged with them.
package correlate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/satyaki-up/bugit/internal/bugs"
	"github.com/satyaki-up/bugit/internal/config"
)

var (
	failureRateRe = regexp.MustCompile(`(?s)\[Failure rate\](.*?)\[Stage\]`)
	quotedRe      = regexp.MustCompile(`"(.*?)"`)
)

type Searcher interface {
	Search(ctx context.Context, project, tag string) ([]bugs.Result, error)
}

type Record struct {
	Link        string   `json:"link"`
	Title       string   `json:"title"`
	CIDs        []string `json:"CID"`
	FailureRate string   `json:"failure_rate,omitempty"`
}

type Correlator struct {
	searcher Searcher
	env      config.Environment
	logger   *zap.Logger
}

func New(searcher Searcher, env config.Environment, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{searcher: searcher, env: env, logger: logger}
}

// Run searches project once per CID, in order, and returns one record per
// bug number. A bug found again under a later CID gets that CID appended.
func (c *Correlator) Run(ctx context.Context, project string, cids []string) (map[int]*Record, error) {
	records := make(map[int]*Record)
	for _, cid := range cids {
		cid = strings.TrimSpace(cid)
		if cid == "" {
			continue
		}
		results, err := c.searcher.Search(ctx, project, cid)
		if err != nil {
			return nil, fmt.Errorf("correlate %s: %w", cid, err)
		}
		for _, res := range results {
			c.add(records, project, cid, res)
		}
	}
	return records, nil
}

func (c *Correlator) add(records map[int]*Record, project, cid string, res bugs.Result) {
	number := res.Bug.ID

	failureRate, ok := ExtractFailureRate(res.Bug.Description)
	if ok {
		c.logger.Info("failure rate", zap.Int("bug", number), zap.String("section", failureRate))
	} else {
		c.logger.Info("Could not find the Additional Information section", zap.Int("bug", number))
	}

	if rec, exists := records[number]; exists {
		rec.CIDs = append(rec.CIDs, cid)
		return
	}

	title, ok := DisplayTitle(res.Summary.Title)
	if !ok {
		c.logger.Info("No content found", zap.Int("bug", number), zap.String("title", res.Summary.Title))
		title = res.Summary.Title
	}
	records[number] = &Record{
		Link:        c.env.ProjectBugURL(project, number),
		Title:       title,
		CIDs:        []string{cid},
		FailureRate: failureRate,
	}
}

// ExtractFailureRate returns the trimmed text between the "[Failure rate]"
// and "[Stage]" markers of a bug description.
func ExtractFailureRate(description string) (string, bool) {
	m := failureRateRe.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// DisplayTitle returns the first double-quoted part of title.
func DisplayTitle(title string) (string, bool) {
	m := quotedRe.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// BugNumbers lists the keys of records in ascending order.
func BugNumbers(records map[int]*Record) []int {
	out := make([]int, 0, len(records))
	for n := range records {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
