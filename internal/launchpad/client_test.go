package launchpad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testCreds = Credentials{ConsumerKey: "bugit", Token: "tok", Secret: "s3cret"}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", testCreds, WithHTTPClient(srv.Client())), srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignerHeader(t *testing.T) {
	s := newSigner(Credentials{ConsumerKey: "bugit", Token: "abc", Secret: "x y&z"})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	s.nonce = func() string { return "nonce-1" }

	h := s.header()
	assert.True(t, strings.HasPrefix(h, `OAuth realm="OAuth", `))
	assert.Contains(t, h, `oauth_consumer_key="bugit"`)
	assert.Contains(t, h, `oauth_token="abc"`)
	assert.Contains(t, h, `oauth_signature_method="PLAINTEXT"`)
	assert.Contains(t, h, `oauth_signature="%26x%2520y%2526z"`)
	assert.Contains(t, h, `oauth_timestamp="1700000000"`)
	assert.Contains(t, h, `oauth_nonce="nonce-1"`)
	assert.Contains(t, h, `oauth_version="1.0"`)
}

func TestClientSignsRequestsAndUsesVersionRoot(t *testing.T) {
	var gotPath, gotAuth, gotAccept string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		writeJSON(w, Person{Name: "alice", SelfLink: "http://x/devel/~alice"})
	}))

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Name)
	assert.Equal(t, "/devel/people/+me", gotPath)
	assert.Contains(t, gotAuth, `oauth_token="tok"`)
	assert.Equal(t, "application/json", gotAccept)
}

func TestWithVersion(t *testing.T) {
	c := NewClient("https://api.launchpad.net", testCreds, WithVersion("1.0"))
	assert.Equal(t, "https://api.launchpad.net/1.0/", c.ServiceRoot())
}

func TestProjectNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devel/nosuch", r.URL.Path)
		http.Error(w, "Object: <Launchpad> doesn't have an attribute nosuch", http.StatusNotFound)
	}))

	_, err := c.Project(context.Background(), "nosuch")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.Contains(t, apiErr.Error(), "404")
}

func TestMeUnauthorized(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Expired token", http.StatusUnauthorized)
	}))

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestPersonUsesTildePath(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devel/~bob", r.URL.Path)
		writeJSON(w, Person{Name: "bob"})
	}))

	p, err := c.Person(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Name)
}

func TestSearchTasksPaginates(t *testing.T) {
	var srvURL string
	calls := 0
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "searchTasks", r.URL.Query().Get("ws.op"))
		assert.Equal(t, `["202312-32368"]`, r.URL.Query().Get("tags"))
		if r.URL.Query().Get("ws.start") == "" {
			writeJSON(w, collection[BugTask]{
				TotalSize: 3,
				Entries: []BugTask{
					{Title: "one", BugLink: srvURL + "/devel/bugs/1"},
					{Title: "two", BugLink: srvURL + "/devel/bugs/2"},
				},
				NextCollectionLink: srvURL + "/devel/sutton?ws.op=searchTasks&tags=%5B%22202312-32368%22%5D&ws.start=2&ws.size=2",
			})
			return
		}
		writeJSON(w, collection[BugTask]{
			TotalSize: 3,
			Start:     2,
			Entries:   []BugTask{{Title: "three", BugLink: srvURL + "/devel/bugs/3"}},
		})
	}))
	srvURL = srv.URL

	tasks, err := c.SearchTasks(context.Background(), &Project{Name: "sutton", SelfLink: srv.URL + "/devel/sutton"}, []string{"202312-32368"})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, 2, calls)
	id, ok := tasks[2].BugID()
	require.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestSearchTasksReadsEveryPage(t *testing.T) {
	const total, pageSize = 1500, 600
	var srvURL string
	calls := 0
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		start, _ := strconv.Atoi(r.URL.Query().Get("ws.start"))
		page := collection[BugTask]{TotalSize: total, Start: start, Entries: []BugTask{}}
		for i := start; i < total && i < start+pageSize; i++ {
			page.Entries = append(page.Entries, BugTask{BugLink: fmt.Sprintf("%s/devel/bugs/%d", srvURL, i+1)})
		}
		if start+pageSize < total {
			page.NextCollectionLink = fmt.Sprintf("%s/devel/sutton?ws.op=searchTasks&tags=%%5B%%22oem-priority%%22%%5D&ws.start=%d&ws.size=%d", srvURL, start+pageSize, pageSize)
		}
		writeJSON(w, page)
	}))
	srvURL = srv.URL

	tasks, err := c.SearchTasks(context.Background(), &Project{Name: "sutton", SelfLink: srv.URL + "/devel/sutton"}, []string{"oem-priority"})
	require.NoError(t, err)
	require.Len(t, tasks, total)
	assert.Equal(t, 3, calls)
	id, ok := tasks[total-1].BugID()
	require.True(t, ok)
	assert.Equal(t, total, id)
}

func TestSearchTasksRejectsPageLoop(t *testing.T) {
	var srvURL string
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, collection[BugTask]{
			TotalSize:          10,
			Entries:            []BugTask{{Title: "again"}},
			NextCollectionLink: srvURL + "/devel/sutton?ws.op=searchTasks&ws.start=1",
		})
	}))
	srvURL = srv.URL

	_, err := c.SearchTasks(context.Background(), &Project{SelfLink: srv.URL + "/devel/sutton"}, []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeats page")
}

func TestSearchTasksEmptyIsNotNil(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, collection[BugTask]{TotalSize: 0, Entries: []BugTask{}})
	}))

	tasks, err := c.SearchTasks(context.Background(), &Project{SelfLink: srv.URL + "/devel/sutton"}, []string{"none"})
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestSeriesNullMeansAbsent(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getSeries", r.URL.Query().Get("ws.op"))
		if r.URL.Query().Get("name") == "jammy" {
			writeJSON(w, Series{Name: "jammy", SelfLink: "http://lp/devel/sutton/jammy"})
			return
		}
		_, _ = io.WriteString(w, "null")
	}))
	project := &Project{SelfLink: srv.URL + "/devel/sutton"}

	s, err := c.Series(context.Background(), project, "focal")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = c.Series(context.Background(), project, "jammy")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "jammy", s.Name)
}

func TestCreateBugFollowsLocation(t *testing.T) {
	var srvURL string
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/devel/bugs":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "createBug", r.PostForm.Get("ws.op"))
			assert.Equal(t, "Crash on resume", r.PostForm.Get("title"))
			assert.Equal(t, `["cid-1","oem"]`, r.PostForm.Get("tags"))
			assert.Equal(t, srvURL+"/devel/sutton", r.PostForm.Get("target"))
			w.Header().Set("Location", srvURL+"/devel/bugs/77")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/devel/bugs/77":
			writeJSON(w, Bug{ID: 77, Title: "Crash on resume", SelfLink: srvURL + "/devel/bugs/77"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	srvURL = srv.URL

	bug, err := c.CreateBug(context.Background(), NewBug{
		Title:  "Crash on resume",
		Tags:   []string{"cid-1", "oem"},
		Target: srv.URL + "/devel/sutton",
	})
	require.NoError(t, err)
	assert.Equal(t, 77, bug.ID)
}

func TestPatchBugSendsJSON(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		assert.Equal(t, map[string]any{"tags": []any{"a", "b"}}, fields)
		w.WriteHeader(209)
		writeJSON(w, Bug{ID: 5, Tags: []string{"a", "b"}, SelfLink: "http://lp/devel/bugs/5"})
	}))

	updated, err := c.PatchBug(context.Background(), &Bug{ID: 5, SelfLink: srv.URL + "/devel/bugs/5"}, map[string]any{"tags": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)
}

func TestPatchTaskRefetchesWhenNoBody(t *testing.T) {
	var srvURL string
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, BugTask{Status: "Confirmed", SelfLink: srvURL + "/devel/sutton/+bug/5"})
	}))
	srvURL = srv.URL

	task, err := c.PatchTask(context.Background(), &BugTask{SelfLink: srv.URL + "/devel/sutton/+bug/5"}, map[string]any{"status": "Confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", task.Status)
}

func TestAddNominationAndApprove(t *testing.T) {
	var srvURL string
	approved := false
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/devel/bugs/5":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "addNomination", r.PostForm.Get("ws.op"))
			assert.Equal(t, "http://lp/devel/sutton/jammy", r.PostForm.Get("target"))
			w.Header().Set("Location", srvURL+"/devel/bugs/5/nominations/9")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/devel/bugs/5/nominations/9":
			writeJSON(w, Nomination{Status: "Nominated", SelfLink: srvURL + "/devel/bugs/5/nominations/9"})
		case r.Method == http.MethodPost && r.URL.Path == "/devel/bugs/5/nominations/9":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "approve", r.PostForm.Get("ws.op"))
			approved = true
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	srvURL = srv.URL

	n, err := c.AddNomination(context.Background(), &Bug{SelfLink: srv.URL + "/devel/bugs/5"}, &Series{SelfLink: "http://lp/devel/sutton/jammy"})
	require.NoError(t, err)
	require.NoError(t, c.ApproveNomination(context.Background(), n))
	assert.True(t, approved)
}

func TestAddAttachmentIsMultipart(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "addAttachment", r.FormValue("ws.op"))
		assert.Equal(t, "Automatically attached", r.FormValue("comment"))
		assert.Equal(t, "dmesg.log", r.FormValue("filename"))
		assert.Equal(t, "false", r.FormValue("is_patch"))
		f, hdr, err := r.FormFile("data")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "dmesg.log", hdr.Filename)
		assert.Equal(t, "kernel: oops", string(data))
		w.WriteHeader(http.StatusCreated)
	}))

	err := c.AddAttachment(context.Background(), &Bug{SelfLink: srv.URL + "/devel/bugs/5"}, Attachment{
		Filename: "dmesg.log",
		Comment:  "Automatically attached",
		Data:     []byte("kernel: oops"),
	})
	require.NoError(t, err)
}

func TestNewMessage(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "newMessage", r.PostForm.Get("ws.op"))
		assert.Equal(t, "still failing on 6.8", r.PostForm.Get("content"))
		w.WriteHeader(http.StatusCreated)
	}))

	require.NoError(t, c.NewMessage(context.Background(), &Bug{SelfLink: srv.URL + "/devel/bugs/5"}, "still failing on 6.8"))
}

func TestBugTasksFallsBackToSelfLink(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devel/bugs/5/bug_tasks", r.URL.Path)
		writeJSON(w, collection[BugTask]{Entries: []BugTask{{Status: "New"}}})
	}))

	tasks, err := c.BugTasks(context.Background(), &Bug{SelfLink: srv.URL + "/devel/bugs/5"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestBugTaskHelpers(t *testing.T) {
	task := BugTask{
		BugLink:      "https://api.launchpad.net/devel/bugs/2045678",
		AssigneeLink: "https://api.launchpad.net/devel/~alice",
	}
	id, ok := task.BugID()
	assert.True(t, ok)
	assert.Equal(t, 2045678, id)
	assert.Equal(t, "alice", task.AssigneeName())

	_, ok = BugTask{}.BugID()
	assert.False(t, ok)
	assert.Empty(t, BugTask{}.AssigneeName())
}
