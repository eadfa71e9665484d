package openml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/banshee-data/surrogate/internal/httputil"
)

// DefaultBaseURL is the public OpenML JSON API.
const DefaultBaseURL = "https://www.openml.org/api/v1/json"

// setupBatchSize bounds how many setup ids go into one setup list request.
const setupBatchSize = 100

// maxResponseBytes caps a single API response body.
const maxResponseBytes = 64 << 20

// OpenML reports an empty listing as HTTP 412 with this error code.
const codeNoResults = "372"

// errNoResults marks an empty listing inside the client.
var errNoResults = errors.New("openml: no results")

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	URL     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openml: %s: HTTP %d (code %s): %s", e.URL, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("openml: %s: HTTP %d", e.URL, e.Status)
}

// Client talks to the OpenML REST API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for baseURL. An empty baseURL selects
// DefaultBaseURL; a zero timeout leaves requests bounded only by their context.
// Throttled and unavailable responses are retried.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retry := httputil.NewRetryClient(&http.Client{Timeout: timeout})
	retry.OnRetry = func(req *http.Request, attempt int, wait time.Duration, cause string) {
		opsf("%s %s: attempt %d failed (%s), retrying in %s", req.Method, req.URL.Path, attempt, cause, wait)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    retry,
	}
}

// StudyTasks returns the task ids of a study, in the order the server lists
// them. studyID may be numeric or an alias such as "OpenML100".
func (c *Client) StudyTasks(ctx context.Context, studyID string) ([]int, error) {
	body, err := c.get(ctx, "study/"+url.PathEscape(studyID))
	if err != nil {
		return nil, fmt.Errorf("fetch study %s: %w", studyID, err)
	}
	var tasks []int
	each(gjson.GetBytes(body, "study.tasks.task_id"), func(r gjson.Result) {
		tasks = append(tasks, int(r.Int()))
	})
	if len(tasks) == 0 {
		return nil, fmt.Errorf("study %s lists no tasks", studyID)
	}
	diagf("study %s: %d tasks", studyID, len(tasks))
	return tasks, nil
}

// TaskFlowRuns returns up to q.Limit runs of q.FlowID on q.TaskID evaluated
// with q.Measure, ordered by run id. A server-side empty listing is an empty
// slice, not an error.
func (c *Client) TaskFlowRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	path := fmt.Sprintf("evaluation/list/function/%s/task/%d/flow/%d",
		url.PathEscape(q.Measure), q.TaskID, q.FlowID)
	if q.Limit > 0 {
		path += fmt.Sprintf("/limit/%d", q.Limit)
	}
	body, err := c.get(ctx, path)
	if errors.Is(err, errNoResults) {
		diagf("%s: no evaluations", q.Key())
		return []Run{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list evaluations (%s): %w", q.Key(), err)
	}

	var runs []Run
	each(gjson.GetBytes(body, "evaluations.evaluation"), func(r gjson.Result) {
		runs = append(runs, Run{
			RunID:   int(r.Get("run_id").Int()),
			SetupID: int(r.Get("setup_id").Int()),
			Value:   r.Get("value").Float(),
		})
	})
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID < runs[j].RunID })

	params, err := c.setupParameters(ctx, runs)
	if err != nil {
		return nil, fmt.Errorf("list setups (%s): %w", q.Key(), err)
	}
	for i := range runs {
		runs[i].Parameters = params[runs[i].SetupID]
		if runs[i].Parameters == nil {
			opsf("%s: setup %d of run %d not listed, run has no parameters", q.Key(), runs[i].SetupID, runs[i].RunID)
			runs[i].Parameters = map[string]string{}
		}
	}
	diagf("%s: %d runs, %d setups", q.Key(), len(runs), len(params))
	return runs, nil
}

// setupParameters fetches the parameter settings of every distinct setup the
// runs refer to.
func (c *Client) setupParameters(ctx context.Context, runs []Run) (map[int]map[string]string, error) {
	seen := make(map[int]bool)
	var ids []int
	for _, r := range runs {
		if !seen[r.SetupID] {
			seen[r.SetupID] = true
			ids = append(ids, r.SetupID)
		}
	}
	sort.Ints(ids)

	out := make(map[int]map[string]string, len(ids))
	for start := 0; start < len(ids); start += setupBatchSize {
		end := min(start+setupBatchSize, len(ids))
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.Itoa(id))
		}
		body, err := c.get(ctx, "setup/list/setup/"+strings.Join(parts, ","))
		if errors.Is(err, errNoResults) {
			continue
		}
		if err != nil {
			return nil, err
		}
		each(gjson.GetBytes(body, "setups.setup"), func(s gjson.Result) {
			params := make(map[string]string)
			each(s.Get("parameter"), func(p gjson.Result) {
				params[p.Get("parameter_name").String()] = unquote(p.Get("value").String())
			})
			out[int(s.Get("setup_id").Int())] = params
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u := c.BaseURL + "/" + path
	if c.APIKey != "" {
		u += "?api_key=" + url.QueryEscape(c.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var hc httputil.HTTPClient = http.DefaultClient
	if c.HTTP != nil {
		hc = c.HTTP
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(body, "error.code").String(),
			Message: gjson.GetBytes(body, "error.message").String(),
			URL:     c.BaseURL + "/" + path,
		}
		if resp.StatusCode == http.StatusPreconditionFailed && apiErr.Code == codeNoResults {
			return nil, errNoResults
		}
		return nil, apiErr
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", path)
	}
	return body, nil
}

// each visits every element of an array, or r itself when the server
// collapsed a single-element list into an object.
func each(r gjson.Result, fn func(gjson.Result)) {
	switch {
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			fn(v)
			return true
		})
	case r.Exists():
		fn(r)
	}
}

// unquote strips the JSON encoding OpenML applies to string parameter values.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}
