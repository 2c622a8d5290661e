package launchpad

import (
	"path"
	"strconv"
	"strings"
	"time"
)

type Person struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
	WebLink     string `json:"web_link"`
}

type Project struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
	WebLink     string `json:"web_link"`
}

type Series struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
}

type Bug struct {
	ID                     int        `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Tags                   []string   `json:"tags"`
	SelfLink               string     `json:"self_link"`
	WebLink                string     `json:"web_link"`
	BugTasksCollectionLink string     `json:"bug_tasks_collection_link"`
	DateCreated            *time.Time `json:"date_created,omitempty"`
}

type BugTask struct {
	Title         string `json:"title"`
	Status        string `json:"status"`
	Importance    string `json:"importance"`
	AssigneeLink  string `json:"assignee_link"`
	TargetLink    string `json:"target_link"`
	BugTargetName string `json:"bug_target_name"`
	BugLink       string `json:"bug_link"`
	SelfLink      string `json:"self_link"`
	WebLink       string `json:"web_link"`
}

// BugID is the numeric ID at the end of the task's bug link.
func (t BugTask) BugID() (int, bool) {
	if t.BugLink == "" {
		return 0, false
	}
	id, err := strconv.Atoi(path.Base(strings.TrimSuffix(t.BugLink, "/")))
	if err != nil {
		return 0, false
	}
	return id, true
}

// AssigneeName is the person name from the assignee link, empty when unassigned.
func (t BugTask) AssigneeName() string {
	return NameFromLink(t.AssigneeLink)
}

type Nomination struct {
	Status     string `json:"status"`
	TargetLink string `json:"target_link"`
	SelfLink   string `json:"self_link"`
}

// NewBug is the payload of the createBug operation.
type NewBug struct {
	Title       string
	Description string
	Tags        []string
	Target      string
}

// Attachment is one file uploaded with addAttachment.
type Attachment struct {
	Filename    string
	ContentType string
	Comment     string
	Data        []byte
}

type collection[T any] struct {
	TotalSize          int    `json:"total_size"`
	Start              int    `json:"start"`
	Entries            []T    `json:"entries"`
	NextCollectionLink string `json:"next_collection_link"`
}

// NameFromLink turns ".../~name" person links into "name".
func NameFromLink(link string) string {
	if link == "" {
		return ""
	}
	return strings.TrimPrefix(path.Base(strings.TrimSuffix(link, "/")), "~")
}
