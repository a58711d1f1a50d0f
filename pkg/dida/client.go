package dida

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/dailyplan/pkg/config"
	"github.com/harrisonrobin/dailyplan/pkg/model"
)

// errDecode marks a 2xx response whose body could not be read as JSON.
var errDecode = errors.New("failed to decode response")

// Client talks to the Dida365 open API.
type Client struct {
	baseURL      string
	closedURL    string
	cookie       string
	httpClient   *http.Client
	readTimeout  time.Duration
	writeTimeout time.Duration
	loc          *time.Location
	log          zerolog.Logger
}

func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Dida.Token, TokenType: "Bearer"})
	return &Client{
		baseURL:      strings.TrimRight(cfg.Dida.BaseURL, "/"),
		closedURL:    strings.TrimRight(cfg.Dida.ClosedURL, "/"),
		cookie:       cfg.Dida.Cookie,
		httpClient:   &http.Client{Transport: &oauth2.Transport{Source: src}},
		readTimeout:  cfg.Dida.ReadTimeout,
		writeTimeout: cfg.Dida.WriteTimeout,
		loc:          cfg.Location(),
		log:          log.With().Str("component", "dida").Logger(),
	}
}

// ListProjects returns every project. A provider with zero projects yields
// an empty slice and no error.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var raw []project
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/project", nil, &raw, c.readTimeout, nil); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]model.Project, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" {
			continue
		}
		projects = append(projects, p.toModel())
	}
	c.log.Debug().Int("count", len(projects)).Msg("fetched projects")
	return projects, nil
}

// ListTasks returns the open tasks of one project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	var data projectData
	path := "/project/" + url.PathEscape(projectID) + "/data"
	if err := c.do(ctx, http.MethodGet, c.baseURL+path, nil, &data, c.readTimeout, nil); err != nil {
		return nil, fmt.Errorf("list tasks of project %s: %w", projectID, err)
	}

	tasks := c.toModels(data.Tasks)
	c.log.Debug().Str("project", projectID).Int("count", len(tasks)).Msg("fetched tasks")
	return tasks, nil
}

// ListCompletedTasks returns the tasks of every project completed within
// [from, to]. The feed is not part of the open API; DIDA_COOKIE is sent
// along when set.
func (c *Client) ListCompletedTasks(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	q := url.Values{}
	q.Set("from", from.In(c.loc).Format(closedTimeLayout))
	q.Set("to", to.In(c.loc).Format(closedTimeLayout))
	q.Set("status", "Completed")

	var header http.Header
	if c.cookie != "" {
		header = http.Header{"Cookie": []string{c.cookie}}
	}

	var raw []task
	rawURL := c.closedURL + "/project/all/closed?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, rawURL, nil, &raw, c.readTimeout, header); err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}

	tasks := c.toModels(raw)
	for i := range tasks {
		tasks[i].Status = model.StatusCompleted
	}
	c.log.Debug().Int("count", len(tasks)).Msg("fetched completed tasks")
	return tasks, nil
}

func (c *Client) toModels(raw []task) []model.Task {
	tasks := make([]model.Task, 0, len(raw))
	for _, r := range raw {
		t, known := r.toModel()
		if !known {
			c.log.Warn().
				Str("task", r.ID).
				Int("priority", r.Priority).
				Msg("unmapped priority code, treating as none")
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// CreateNote stores body as an all-day note spanning the local day of day.
// It makes a single attempt, and any 2xx status counts as stored.
func (c *Client) CreateNote(ctx context.Context, projectID, title, body string, day time.Time) error {
	y, m, d := day.In(c.loc).Date()

	req := noteRequest{
		Title:     title,
		Content:   body,
		ProjectID: projectID,
		IsAllDay:  true,
		StartDate: CustomTime{time.Date(y, m, d, 0, 0, 0, 0, c.loc)},
		DueDate:   CustomTime{time.Date(y, m, d, 23, 59, 0, 0, c.loc)},
		TimeZone:  c.loc.String(),
		Kind:      KindNote,
	}

	var created task
	err := c.do(ctx, http.MethodPost, c.baseURL+"/task", req, &created, c.writeTimeout, nil)
	switch {
	case errors.Is(err, errDecode):
		c.log.Debug().Err(err).Str("title", title).Msg("created note, response body unreadable")
		return nil
	case err != nil:
		return fmt.Errorf("create note: %w", err)
	}
	c.log.Debug().Str("id", created.ID).Str("title", title).Msg("created note")
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, in, out any, timeout time.Duration, header http.Header) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}
