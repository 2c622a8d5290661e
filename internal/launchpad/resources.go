package launchpad

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Me returns the person the credentials belong to. Any call needing
// authentication fails here first when the token was revoked.
func (c *Client) Me(ctx context.Context) (*Person, error) {
	var p Person
	if err := c.get(ctx, "people/+me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Project(ctx context.Context, name string) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}
	var p Project
	if err := c.get(ctx, url.PathEscape(name), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Person(ctx context.Context, name string) (*Person, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("person name cannot be empty")
	}
	var p Person
	if err := c.get(ctx, "~"+url.PathEscape(name), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Series returns nil without error when the project has no series by that name.
func (c *Client) Series(ctx context.Context, project *Project, name string) (*Series, error) {
	var s *Series
	err := c.get(ctx, project.SelfLink, map[string]any{"ws.op": "getSeries", "name": name}, &s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) Bug(ctx context.Context, id int) (*Bug, error) {
	var b Bug
	if err := c.get(ctx, "bugs/"+strconv.Itoa(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BugTasks lists the tasks of bug in creation order; the first one is the
// task of the project the bug was filed against.
func (c *Client) BugTasks(ctx context.Context, bug *Bug) ([]BugTask, error) {
	link := bug.BugTasksCollectionLink
	if link == "" {
		link = strings.TrimSuffix(bug.SelfLink, "/") + "/bug_tasks"
	}
	return getCollection[BugTask](ctx, c, link, nil)
}

// SearchTasks returns the project's bug tasks carrying all of tags.
func (c *Client) SearchTasks(ctx context.Context, project *Project, tags []string) ([]BugTask, error) {
	return getCollection[BugTask](ctx, c, project.SelfLink, map[string]any{
		"ws.op": "searchTasks",
		"tags":  tags,
	})
}

func (c *Client) CreateBug(ctx context.Context, nb NewBug) (*Bug, error) {
	tags := nb.Tags
	if tags == nil {
		tags = []string{}
	}
	var created Bug
	location, err := c.invoke(ctx, "bugs", "createBug", map[string]any{
		"title":       nb.Title,
		"description": nb.Description,
		"tags":        tags,
		"target":      nb.Target,
	}, &created)
	if err != nil {
		return nil, err
	}
	if location == "" {
		if created.SelfLink == "" {
			return nil, fmt.Errorf("launchpad createBug returned neither a location nor a bug")
		}
		return &created, nil
	}
	var b Bug
	if err := c.get(ctx, location, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PatchBug applies fields to bug and returns its new representation.
func (c *Client) PatchBug(ctx context.Context, bug *Bug, fields map[string]any) (*Bug, error) {
	var updated Bug
	if err := c.patch(ctx, bug.SelfLink, fields, &updated); err != nil {
		return nil, err
	}
	if updated.SelfLink == "" {
		if err := c.get(ctx, bug.SelfLink, nil, &updated); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

func (c *Client) PatchTask(ctx context.Context, task *BugTask, fields map[string]any) (*BugTask, error) {
	var updated BugTask
	if err := c.patch(ctx, task.SelfLink, fields, &updated); err != nil {
		return nil, err
	}
	if updated.SelfLink == "" {
		if err := c.get(ctx, task.SelfLink, nil, &updated); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// AddNomination nominates bug for series; the nomination still needs approval.
func (c *Client) AddNomination(ctx context.Context, bug *Bug, series *Series) (*Nomination, error) {
	var n Nomination
	location, err := c.invoke(ctx, bug.SelfLink, "addNomination", map[string]any{"target": series.SelfLink}, &n)
	if err != nil {
		return nil, err
	}
	if location != "" {
		if err := c.get(ctx, location, nil, &n); err != nil {
			return nil, err
		}
	}
	if n.SelfLink == "" {
		return nil, fmt.Errorf("launchpad addNomination returned no nomination")
	}
	return &n, nil
}

func (c *Client) ApproveNomination(ctx context.Context, n *Nomination) error {
	_, err := c.invoke(ctx, n.SelfLink, "approve", nil, nil)
	return err
}

func (c *Client) AddAttachment(ctx context.Context, bug *Bug, a Attachment) error {
	fields := map[string]string{
		"comment":  a.Comment,
		"filename": a.Filename,
		"is_patch": "false",
	}
	if a.ContentType != "" {
		fields["content_type"] = a.ContentType
	}
	_, err := c.invokeMultipart(ctx, bug.SelfLink, "addAttachment", fields, a)
	return err
}

func (c *Client) NewMessage(ctx context.Context, bug *Bug, content string) error {
	_, err := c.invoke(ctx, bug.SelfLink, "newMessage", map[string]any{"content": content}, nil)
	return err
}
