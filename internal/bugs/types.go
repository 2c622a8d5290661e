package bugs

import (
	"strings"

	"github.com/satyaki-up/bugit/internal/launchpad"
)

type Status string

const (
	StatusNew          Status = "New"
	StatusIncomplete   Status = "Incomplete"
	StatusOpinion      Status = "Opinion"
	StatusInvalid      Status = "Invalid"
	StatusWontFix      Status = "Won't Fix"
	StatusExpired      Status = "Expired"
	StatusConfirmed    Status = "Confirmed"
	StatusTriaged      Status = "Triaged"
	StatusInProgress   Status = "In Progress"
	StatusFixCommitted Status = "Fix Committed"
	StatusFixReleased  Status = "Fix Released"
	StatusDoesNotExist Status = "Does Not Exist"
	StatusUnknown      Status = "Unknown"
)

type Importance string

const (
	ImportanceUnknown   Importance = "Unknown"
	ImportanceUndecided Importance = "Undecided"
	ImportanceCritical  Importance = "Critical"
	ImportanceHigh      Importance = "High"
	ImportanceMedium    Importance = "Medium"
	ImportanceLow       Importance = "Low"
	ImportanceWishlist  Importance = "Wishlist"
)

// Report is the local description of a bug. In Update, zero-valued fields
// mean "leave unchanged".
type Report struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Project     string     `json:"project"`
	Series      string     `json:"series,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Importance  Importance `json:"importance,omitempty"`
}

type Summary struct {
	Status     string   `json:"status"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Assignee   string   `json:"assignee"`
	Importance string   `json:"importance"`
}

func (s Summary) TagString() string {
	return strings.Join(s.Tags, " ")
}

type Result struct {
	Bug     *launchpad.Bug `json:"bug"`
	Summary Summary        `json:"summary"`
}

func summarize(task launchpad.BugTask, bug *launchpad.Bug) Summary {
	tags := []string{}
	if bug != nil && bug.Tags != nil {
		tags = bug.Tags
	}
	return Summary{
		Status:     task.Status,
		Title:      task.Title,
		Tags:       tags,
		Assignee:   task.AssigneeName(),
		Importance: task.Importance,
	}
}
