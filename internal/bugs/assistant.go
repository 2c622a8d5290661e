package bugs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/satyaki-up/bugit/internal/config"
	"github.com/satyaki-up/bugit/internal/launchpad"
)

// AttachmentComment is posted with every uploaded attachment.
const AttachmentComment = "Automatically attached"

// Tracker is the part of the Launchpad client the assistant drives.
type Tracker interface {
	Me(ctx context.Context) (*launchpad.Person, error)
	Project(ctx context.Context, name string) (*launchpad.Project, error)
	Series(ctx context.Context, project *launchpad.Project, name string) (*launchpad.Series, error)
	Person(ctx context.Context, name string) (*launchpad.Person, error)
	Bug(ctx context.Context, id int) (*launchpad.Bug, error)
	BugTasks(ctx context.Context, bug *launchpad.Bug) ([]launchpad.BugTask, error)
	SearchTasks(ctx context.Context, project *launchpad.Project, tags []string) ([]launchpad.BugTask, error)
	CreateBug(ctx context.Context, nb launchpad.NewBug) (*launchpad.Bug, error)
	PatchBug(ctx context.Context, bug *launchpad.Bug, fields map[string]any) (*launchpad.Bug, error)
	PatchTask(ctx context.Context, task *launchpad.BugTask, fields map[string]any) (*launchpad.BugTask, error)
	AddNomination(ctx context.Context, bug *launchpad.Bug, series *launchpad.Series) (*launchpad.Nomination, error)
	ApproveNomination(ctx context.Context, n *launchpad.Nomination) error
	AddAttachment(ctx context.Context, bug *launchpad.Bug, a launchpad.Attachment) error
	NewMessage(ctx context.Context, bug *launchpad.Bug, content string) error
}

// Assistant files and maintains bug reports on one Launchpad instance.
// Every operation is a single attempt: lookups that miss are reported as
// ErrNotFound, everything else is returned as the tracker reported it.
type Assistant struct {
	tracker Tracker
	env     config.Environment
	logger  *zap.Logger
	me      *launchpad.Person
}

// NewAssistant checks that the tracker's credentials work before returning.
func NewAssistant(ctx context.Context, tracker Tracker, env config.Environment, logger *zap.Logger) (*Assistant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info(fmt.Sprintf("Using %s service root", env.Name))

	me, err := tracker.Me(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("authenticated", zap.String("user", me.Name))
	return &Assistant{tracker: tracker, env: env, logger: logger, me: me}, nil
}

// Me is the user the session authenticated as.
func (a *Assistant) Me() *launchpad.Person { return a.me }

// Environment is the Launchpad instance the assistant talks to.
func (a *Assistant) Environment() config.Environment { return a.env }

// BugURL is the web page of bug id on the assistant's instance.
func (a *Assistant) BugURL(id int) string {
	return a.env.BugURL(id)
}

// Search lists the project's bugs tagged with tag. No match is an empty
// slice, not an error.
func (a *Assistant) Search(ctx context.Context, project, tag string) ([]Result, error) {
	p, err := a.ValidateProject(ctx, project)
	if err != nil {
		return nil, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("%w: search tag is required", ErrInvalidInput)
	}

	a.logger.Info(fmt.Sprintf("Searching bugs by %s...", tag))
	tasks, err := a.tracker.SearchTasks(ctx, p, []string{tag})
	if err != nil {
		return nil, fmt.Errorf("%w: bugs tagged %q in %s: %w", ErrSearchFailed, tag, p.Name, err)
	}

	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		id, ok := task.BugID()
		if !ok {
			return nil, fmt.Errorf("%w: bugs tagged %q in %s: task %s has no bug link", ErrSearchFailed, tag, p.Name, task.SelfLink)
		}
		bug, err := a.tracker.Bug(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: bugs tagged %q in %s: %w", ErrSearchFailed, tag, p.Name, err)
		}
		results = append(results, Result{Bug: bug, Summary: summarize(task, bug)})
	}
	return results, nil
}

// FetchByID returns the bug and the summary of its first task.
func (a *Assistant) FetchByID(ctx context.Context, id int) (*launchpad.Bug, Summary, error) {
	a.logger.Info("Checking bug...")
	bug, err := a.tracker.Bug(ctx, id)
	if err != nil {
		if launchpad.IsNotFound(err) {
			return nil, Summary{}, fmt.Errorf("%w: launchpad bug %d", ErrNotFound, id)
		}
		return nil, Summary{}, err
	}
	tasks, err := a.tracker.BugTasks(ctx, bug)
	if err != nil {
		return nil, Summary{}, err
	}
	if len(tasks) == 0 {
		s := summarize(launchpad.BugTask{}, bug)
		s.Title = bug.Title
		return bug, s, nil
	}
	return bug, summarize(tasks[0], bug), nil
}

// ValidateProject resolves a project by name; a missing one is ErrNotFound.
func (a *Assistant) ValidateProject(ctx context.Context, name string) (*launchpad.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidInput)
	}
	a.logger.Info("Checking project name...")
	p, err := a.tracker.Project(ctx, name)
	if err != nil {
		if launchpad.IsNotFound(err) {
			return nil, fmt.Errorf("%w: launchpad project %q", ErrNotFound, name)
		}
		return nil, err
	}
	return p, nil
}

// ValidateSeries resolves a series of project by name.
func (a *Assistant) ValidateSeries(ctx context.Context, project *launchpad.Project, name string) (*launchpad.Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: series is required", ErrInvalidInput)
	}
	a.logger.Info("Checking series...")
	s, err := a.tracker.Series(ctx, project, name)
	if err != nil {
		if launchpad.IsNotFound(err) {
			return nil, fmt.Errorf("%w: series %q in %s", ErrNotFound, name, project.Name)
		}
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: series %q in %s", ErrNotFound, name, project.Name)
	}
	return s, nil
}

// ValidateUser resolves a Launchpad user by name.
func (a *Assistant) ValidateUser(ctx context.Context, name string) (*launchpad.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	a.logger.Info("Checking assignee...")
	p, err := a.tracker.Person(ctx, name)
	if err != nil {
		if launchpad.IsNotFound(err) {
			return nil, fmt.Errorf("%w: launchpad user %q", ErrNotFound, name)
		}
		return nil, err
	}
	return p, nil
}

// CreateOrUpdate files r as a new bug when bug is nil and otherwise
// overwrites the given bug's title, description and tags. A title is required
// either way; a blank description keeps the existing one. In both cases the
// project target, series nomination, assignee, status and importance are
// then applied. Nothing is written until the project, series and assignee
// have all been resolved.
//
// There is no duplicate detection: calling it twice with a nil bug files
// two bugs.
func (a *Assistant) CreateOrUpdate(ctx context.Context, bug *launchpad.Bug, r Report) (*launchpad.Bug, string, error) {
	if err := validateEnums(r); err != nil {
		return nil, "", err
	}
	tags, err := NormalizeTags(r.Tags)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(r.Title) == "" {
		return nil, "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	project, err := a.ValidateProject(ctx, r.Project)
	if err != nil {
		return nil, "", err
	}
	var series *launchpad.Series
	if strings.TrimSpace(r.Series) != "" {
		if series, err = a.ValidateSeries(ctx, project, r.Series); err != nil {
			return nil, "", err
		}
	}
	var assignee *launchpad.Person
	if strings.TrimSpace(r.Assignee) != "" {
		if assignee, err = a.ValidateUser(ctx, r.Assignee); err != nil {
			return nil, "", err
		}
	}

	if bug == nil {
		a.logger.Info("Creating Launchpad bug report...")
		bug, err = a.tracker.CreateBug(ctx, launchpad.NewBug{
			Title:       strings.TrimSpace(r.Title),
			Description: r.Description,
			Tags:        tags,
			Target:      project.SelfLink,
		})
		if err != nil {
			return nil, "", err
		}
		a.logger.Info(fmt.Sprintf("Bug report #%d created.", bug.ID))
	} else {
		a.logger.Info("Updating Launchpad bug report...")
		fields := map[string]any{
			"title": strings.TrimSpace(r.Title),
			"tags":  tags,
		}
		if strings.TrimSpace(r.Description) != "" {
			fields["description"] = r.Description
		}
		bug, err = a.tracker.PatchBug(ctx, bug, fields)
		if err != nil {
			return nil, "", err
		}
	}

	tasks, err := a.tracker.BugTasks(ctx, bug)
	if err != nil {
		return nil, "", err
	}
	if len(tasks) == 0 {
		return nil, "", fmt.Errorf("bug %d has no tasks", bug.ID)
	}

	if tasks[0].TargetLink != project.SelfLink {
		a.logger.Info("Updating project...")
		if _, err := a.tracker.PatchTask(ctx, &tasks[0], map[string]any{"target_link": project.SelfLink}); err != nil {
			return nil, "", err
		}
	}

	if series != nil {
		a.logger.Info("Setting series...")
		nomination, err := a.tracker.AddNomination(ctx, bug, series)
		if err != nil {
			return nil, "", err
		}
		if err := a.tracker.ApproveNomination(ctx, nomination); err != nil {
			return nil, "", err
		}
	}

	// Approving a nomination adds a task; the newest one is the one to set up.
	if tasks, err = a.tracker.BugTasks(ctx, bug); err != nil {
		return nil, "", err
	}
	if len(tasks) == 0 {
		return nil, "", fmt.Errorf("bug %d has no tasks", bug.ID)
	}
	task := tasks[len(tasks)-1]

	fields := map[string]any{}
	if assignee != nil {
		a.logger.Info(fmt.Sprintf("Setting assignee for series %s...", task.BugTargetName))
		fields["assignee_link"] = assignee.SelfLink
	}
	if r.Status != "" {
		a.logger.Info("Setting status...")
		fields["status"] = string(r.Status)
	}
	if r.Importance != "" {
		a.logger.Info("Setting importance...")
		fields["importance"] = string(r.Importance)
	}
	if len(fields) > 0 {
		if _, err := a.tracker.PatchTask(ctx, &task, fields); err != nil {
			return nil, "", err
		}
	}

	bugURL := a.BugURL(bug.ID)
	a.logger.Info(fmt.Sprintf("Bug report #%d updated.", bug.ID), zap.String("url", bugURL))
	return bug, bugURL, nil
}

// Attach uploads files to bug in name order.
func (a *Assistant) Attach(ctx context.Context, bug *launchpad.Bug, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data := files[name]
		a.logger.Info(fmt.Sprintf("Uploading attachment %s...", name), zap.String("size", humanize.Bytes(uint64(len(data)))))
		err := a.tracker.AddAttachment(ctx, bug, launchpad.Attachment{
			Filename: name,
			Comment:  AttachmentComment,
			Data:     data,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Comment adds text as a new message on bug. Blank text is rejected.
func (a *Assistant) Comment(ctx context.Context, bug *launchpad.Bug, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrInvalidInput)
	}
	a.logger.Info("Adding comment...")
	return a.tracker.NewMessage(ctx, bug, text)
}

// Update applies only the fields set in r: assignee, status and importance
// on the bug's first task, tags on the bug. Title, description, project and
// series are ignored.
func (a *Assistant) Update(ctx context.Context, bug *launchpad.Bug, r Report) (*launchpad.Bug, string, error) {
	if err := validateEnums(r); err != nil {
		return nil, "", err
	}
	tags, err := NormalizeTags(r.Tags)
	if err != nil {
		return nil, "", err
	}

	taskFields := map[string]any{}
	if strings.TrimSpace(r.Assignee) != "" {
		assignee, err := a.ValidateUser(ctx, r.Assignee)
		if err != nil {
			return nil, "", err
		}
		a.logger.Info(fmt.Sprintf("Setting assignee to %s...", assignee.Name))
		taskFields["assignee_link"] = assignee.SelfLink
	}
	if r.Status != "" {
		a.logger.Info(fmt.Sprintf("Setting status to %s...", r.Status))
		taskFields["status"] = string(r.Status)
	}
	if r.Importance != "" {
		a.logger.Info(fmt.Sprintf("Setting priority to %s...", r.Importance))
		taskFields["importance"] = string(r.Importance)
	}

	if len(tags) > 0 {
		a.logger.Info("Setting tag...")
		if bug, err = a.tracker.PatchBug(ctx, bug, map[string]any{"tags": tags}); err != nil {
			return nil, "", err
		}
	}

	if len(taskFields) > 0 {
		tasks, err := a.tracker.BugTasks(ctx, bug)
		if err != nil {
			return nil, "", err
		}
		if len(tasks) == 0 {
			return nil, "", fmt.Errorf("bug %d has no tasks", bug.ID)
		}
		if _, err := a.tracker.PatchTask(ctx, &tasks[0], taskFields); err != nil {
			return nil, "", err
		}
	}

	bugURL := a.BugURL(bug.ID)
	a.logger.Info(fmt.Sprintf("Bug report #%d updated.", bug.ID))
	return bug, bugURL, nil
}
