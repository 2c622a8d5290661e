package bugs_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/satyaki-up/bugit/internal/launchpad"
)

const lpRoot = "https://api.launchpad.test/devel/"

func notFound(what string) error {
	return &launchpad.APIError{Method: http.MethodGet, URL: lpRoot + what, StatusCode: http.StatusNotFound}
}

// fakeTracker is an in-memory Launchpad with just enough behaviour for the
// assistant: bugs own tasks, approving a nomination adds a series task.
type fakeTracker struct {
	me       *launchpad.Person
	meErr    error
	projects map[string]*launchpad.Project
	series   map[string]map[string]*launchpad.Series
	people   map[string]*launchpad.Person
	bugs     map[int]*launchpad.Bug
	tasks    map[int][]launchpad.BugTask
	nextID   int

	projectErr error
	searchErr  error

	writes      []string
	attachments []launchpad.Attachment
	messages    []string
	nominations map[string]*launchpad.Series
}

func newFakeTracker() *fakeTracker {
	f := &fakeTracker{
		me:          &launchpad.Person{Name: "oem-bot", SelfLink: lpRoot + "~oem-bot"},
		projects:    map[string]*launchpad.Project{},
		series:      map[string]map[string]*launchpad.Series{},
		people:      map[string]*launchpad.Person{},
		bugs:        map[int]*launchpad.Bug{},
		tasks:       map[int][]launchpad.BugTask{},
		nextID:      1,
		nominations: map[string]*launchpad.Series{},
	}
	f.addProject("sutton")
	f.addProject("somerville")
	f.addSeries("sutton", "jammy")
	f.addPerson("alice")
	return f
}

func (f *fakeTracker) addProject(name string) {
	f.projects[name] = &launchpad.Project{Name: name, SelfLink: lpRoot + name}
}

func (f *fakeTracker) addSeries(project, name string) {
	if f.series[project] == nil {
		f.series[project] = map[string]*launchpad.Series{}
	}
	f.series[project][name] = &launchpad.Series{Name: name, SelfLink: lpRoot + project + "/" + name}
}

func (f *fakeTracker) addPerson(name string) {
	f.people[name] = &launchpad.Person{Name: name, SelfLink: lpRoot + "~" + name}
}

// seedBug files a bug directly, bypassing the write log.
func (f *fakeTracker) seedBug(project, title, description string, tags []string, status string) *launchpad.Bug {
	bug := f.newBug(launchpad.NewBug{Title: title, Description: description, Tags: tags, Target: lpRoot + project})
	f.tasks[bug.ID][0].Status = status
	return bug
}

func (f *fakeTracker) newBug(nb launchpad.NewBug) *launchpad.Bug {
	id := f.nextID
	f.nextID++
	link := fmt.Sprintf("%sbugs/%d", lpRoot, id)
	bug := &launchpad.Bug{
		ID:                     id,
		Title:                  nb.Title,
		Description:            nb.Description,
		Tags:                   append([]string{}, nb.Tags...),
		SelfLink:               link,
		BugTasksCollectionLink: link + "/bug_tasks",
	}
	f.bugs[id] = bug
	target := strings.TrimPrefix(nb.Target, lpRoot)
	f.tasks[id] = []launchpad.BugTask{{
		Title:         fmt.Sprintf("Bug #%d in %s: %q", id, target, nb.Title),
		Status:        "New",
		Importance:    "Undecided",
		TargetLink:    nb.Target,
		BugTargetName: target,
		BugLink:       link,
		SelfLink:      fmt.Sprintf("%s%s/+bug/%d", lpRoot, target, id),
	}}
	return f.copyBug(bug)
}

func (f *fakeTracker) copyBug(b *launchpad.Bug) *launchpad.Bug {
	c := *b
	c.Tags = append([]string{}, b.Tags...)
	return &c
}

func (f *fakeTracker) task(bugID int, index int) launchpad.BugTask {
	return f.tasks[bugID][index]
}

func (f *fakeTracker) Me(context.Context) (*launchpad.Person, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.me, nil
}

func (f *fakeTracker) Project(_ context.Context, name string) (*launchpad.Project, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	p, ok := f.projects[name]
	if !ok {
		return nil, notFound(name)
	}
	return p, nil
}

func (f *fakeTracker) Series(_ context.Context, project *launchpad.Project, name string) (*launchpad.Series, error) {
	return f.series[project.Name][name], nil
}

func (f *fakeTracker) Person(_ context.Context, name string) (*launchpad.Person, error) {
	p, ok := f.people[name]
	if !ok {
		return nil, notFound("~" + name)
	}
	return p, nil
}

func (f *fakeTracker) Bug(_ context.Context, id int) (*launchpad.Bug, error) {
	b, ok := f.bugs[id]
	if !ok {
		return nil, notFound(fmt.Sprintf("bugs/%d", id))
	}
	return f.copyBug(b), nil
}

func (f *fakeTracker) BugTasks(_ context.Context, bug *launchpad.Bug) ([]launchpad.BugTask, error) {
	tasks, ok := f.tasks[bug.ID]
	if !ok {
		return nil, notFound(fmt.Sprintf("bugs/%d/bug_tasks", bug.ID))
	}
	return append([]launchpad.BugTask{}, tasks...), nil
}

func (f *fakeTracker) SearchTasks(_ context.Context, project *launchpad.Project, tags []string) ([]launchpad.BugTask, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := []launchpad.BugTask{}
	for id := 1; id < f.nextID; id++ {
		bug, ok := f.bugs[id]
		if !ok || f.tasks[id][0].TargetLink != project.SelfLink {
			continue
		}
		if hasAll(bug.Tags, tags) {
			out = append(out, f.tasks[id][0])
		}
	}
	return out, nil
}

func hasAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeTracker) CreateBug(_ context.Context, nb launchpad.NewBug) (*launchpad.Bug, error) {
	f.writes = append(f.writes, "createBug")
	return f.newBug(nb), nil
}

func (f *fakeTracker) PatchBug(_ context.Context, bug *launchpad.Bug, fields map[string]any) (*launchpad.Bug, error) {
	f.writes = append(f.writes, "patchBug")
	stored, ok := f.bugs[bug.ID]
	if !ok {
		return nil, notFound(fmt.Sprintf("bugs/%d", bug.ID))
	}
	if v, ok := fields["title"].(string); ok {
		stored.Title = v
	}
	if v, ok := fields["description"].(string); ok {
		stored.Description = v
	}
	if v, ok := fields["tags"].([]string); ok {
		stored.Tags = append([]string{}, v...)
	}
	return f.copyBug(stored), nil
}

func (f *fakeTracker) PatchTask(_ context.Context, task *launchpad.BugTask, fields map[string]any) (*launchpad.BugTask, error) {
	f.writes = append(f.writes, "patchTask")
	for id, tasks := range f.tasks {
		for i := range tasks {
			if tasks[i].SelfLink != task.SelfLink {
				continue
			}
			t := &f.tasks[id][i]
			if v, ok := fields["target_link"].(string); ok {
				t.TargetLink = v
				t.BugTargetName = strings.TrimPrefix(v, lpRoot)
			}
			if v, ok := fields["status"].(string); ok {
				t.Status = v
			}
			if v, ok := fields["importance"].(string); ok {
				t.Importance = v
			}
			if v, ok := fields["assignee_link"].(string); ok {
				t.AssigneeLink = v
			}
			updated := *t
			return &updated, nil
		}
	}
	return nil, notFound(task.SelfLink)
}

func (f *fakeTracker) AddNomination(_ context.Context, bug *launchpad.Bug, series *launchpad.Series) (*launchpad.Nomination, error) {
	f.writes = append(f.writes, "addNomination")
	link := fmt.Sprintf("%sbugs/%d/nominations/%s", lpRoot, bug.ID, series.Name)
	f.nominations[link] = series
	return &launchpad.Nomination{Status: "Nominated", TargetLink: series.SelfLink, SelfLink: link}, nil
}

func (f *fakeTracker) ApproveNomination(_ context.Context, n *launchpad.Nomination) error {
	f.writes = append(f.writes, "approve")
	series, ok := f.nominations[n.SelfLink]
	if !ok {
		return notFound(n.SelfLink)
	}
	var bugID int
	if _, err := fmt.Sscanf(strings.TrimPrefix(n.SelfLink, lpRoot), "bugs/%d/", &bugID); err != nil {
		return err
	}
	target := strings.TrimPrefix(series.SelfLink, lpRoot)
	first := f.tasks[bugID][0]
	f.tasks[bugID] = append(f.tasks[bugID], launchpad.BugTask{
		Title:         first.Title,
		Status:        "New",
		Importance:    "Undecided",
		TargetLink:    series.SelfLink,
		BugTargetName: strings.ReplaceAll(target, "/", " "),
		BugLink:       first.BugLink,
		SelfLink:      fmt.Sprintf("%s%s/+bug/%d", lpRoot, target, bugID),
	})
	return nil
}

func (f *fakeTracker) AddAttachment(_ context.Context, _ *launchpad.Bug, a launchpad.Attachment) error {
	f.writes = append(f.writes, "addAttachment")
	f.attachments = append(f.attachments, a)
	return nil
}

func (f *fakeTracker) NewMessage(_ context.Context, _ *launchpad.Bug, content string) error {
	f.writes = append(f.writes, "newMessage")
	f.messages = append(f.messages, content)
	return nil
}
