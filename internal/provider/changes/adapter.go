package changes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/waabox/changesdeck/internal/domain"
)

const defaultBaseURL = "http://localhost:5000/api/0"

const (
	maxBodyBytes  = 32 << 20
	maxErrorBytes = 4 << 10
)

// Adapter implements domain.CIProvider for a Changes API server.
type Adapter struct {
	token   string
	baseURL string
	client  *http.Client
	group   singleflight.Group
}

// Ensure Adapter fully implements domain.CIProvider.
var _ domain.CIProvider = (*Adapter)(nil)

// NewAdapter creates a Changes adapter.
// baseURL is the API root (for example https://changes.example.com/api/0);
// pass empty string for a local server. token is optional and only needed
// for mutating calls.
func NewAdapter(token string, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CommitBuilds returns the build summaries for a commit.
func (a *Adapter) CommitBuilds(ctx context.Context, project, source string) ([]domain.Build, error) {
	apiURL := fmt.Sprintf("%s/projects/%s/sources/%s/builds/", a.baseURL, url.PathEscape(project), url.PathEscape(source))
	var builds []domain.Build
	if err := a.get(ctx, apiURL, &builds); err != nil {
		return nil, err
	}
	return builds, nil
}

type diffBuildsResponse struct {
	domain.Diff
	Updates []domain.DiffUpdate `json:"updates"`
}

// DiffBuilds returns diff metadata and the builds of every diff update.
func (a *Adapter) DiffBuilds(ctx context.Context, diffID string) (domain.Diff, []domain.DiffUpdate, error) {
	apiURL := fmt.Sprintf("%s/phabricator_diffs/%s/builds/", a.baseURL, url.PathEscape(diffID))
	var resp diffBuildsResponse
	if err := a.get(ctx, apiURL, &resp); err != nil {
		return domain.Diff{}, nil, err
	}
	return resp.Diff, resp.Updates, nil
}

// GetBuild returns a build with its jobs and failure summaries.
func (a *Adapter) GetBuild(ctx context.Context, id string) (domain.BuildDetail, error) {
	apiURL := fmt.Sprintf("%s/builds/%s/", a.baseURL, url.PathEscape(id))
	var detail domain.BuildDetail
	if err := a.get(ctx, apiURL, &detail); err != nil {
		return domain.BuildDetail{}, err
	}
	return detail, nil
}

// RetryBuild starts a new build for the same source and returns it.
func (a *Adapter) RetryBuild(ctx context.Context, id string) (domain.Build, error) {
	apiURL := fmt.Sprintf("%s/builds/%s/retry/", a.baseURL, url.PathEscape(id))
	resp, err := a.do(ctx, http.MethodPost, apiURL)
	if err != nil {
		return domain.Build{}, err
	}
	var b domain.Build
	if err := json.Unmarshal(resp.body, &b); err != nil {
		return domain.Build{}, fmt.Errorf("decoding retry response: %w", err)
	}
	return b, nil
}

// GetJobPhases returns a job's phases with their shards and test counts.
func (a *Adapter) GetJobPhases(ctx context.Context, jobID string) ([]domain.Phase, error) {
	apiURL := fmt.Sprintf("%s/jobs/%s/phases/?test_counts=1", a.baseURL, url.PathEscape(jobID))
	var phases []domain.Phase
	if err := a.get(ctx, apiURL, &phases); err != nil {
		return nil, err
	}
	return phases, nil
}

// GetLog returns the raw text of one shard log.
func (a *Adapter) GetLog(ctx context.Context, jobID, logID string) (string, error) {
	apiURL := fmt.Sprintf("%s/jobs/%s/logs/%s/?raw=1", a.baseURL, url.PathEscape(jobID), url.PathEscape(logID))
	resp, err := a.fetch(ctx, apiURL)
	if err != nil {
		return "", err
	}
	return string(resp.body), nil
}

// GetTest returns one test with its captured output.
func (a *Adapter) GetTest(ctx context.Context, id string) (domain.TestCase, error) {
	apiURL := fmt.Sprintf("%s/tests/%s/", a.baseURL, url.PathEscape(id))
	var tc domain.TestCase
	if err := a.get(ctx, apiURL, &tc); err != nil {
		return domain.TestCase{}, err
	}
	return tc, nil
}

// ListTests returns one page of a build's tests.
func (a *Adapter) ListTests(ctx context.Context, buildID string, q domain.TestQuery) (domain.TestPage, error) {
	path := fmt.Sprintf("%s/builds/%s/tests/", a.baseURL, url.PathEscape(buildID))
	if q.FailuresOnly {
		path = fmt.Sprintf("%s/builds/%s/tests/failures/", a.baseURL, url.PathEscape(buildID))
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Reverse {
		params.Set("reverse", "true")
	}
	if q.Query != "" {
		params.Set("query", q.Query)
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	params.Set("page", strconv.Itoa(page))
	apiURL := path + "?" + params.Encode()

	resp, err := a.fetch(ctx, apiURL)
	if err != nil {
		return domain.TestPage{}, err
	}
	var tests []domain.TestCase
	if err := json.Unmarshal(resp.body, &tests); err != nil {
		return domain.TestPage{}, fmt.Errorf("decoding tests: %w", err)
	}
	return domain.TestPage{
		Tests:   tests,
		Page:    page,
		HasNext: hasNextPage(resp.header.Get("Link")),
	}, nil
}

type response struct {
	body   []byte
	header http.Header
}

func (a *Adapter) get(ctx context.Context, apiURL string, target interface{}) error {
	resp, err := a.fetch(ctx, apiURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, target); err != nil {
		return fmt.Errorf("decoding %s: %w", apiURL, err)
	}
	return nil
}

// fetch performs a GET, sharing one in-flight request among concurrent
// callers asking for the same URL.
func (a *Adapter) fetch(ctx context.Context, apiURL string) (response, error) {
	v, err, _ := a.group.Do(apiURL, func() (interface{}, error) {
		return a.do(ctx, http.MethodGet, apiURL)
	})
	if err != nil {
		return response{}, err
	}
	return v.(response), nil
}

func (a *Adapter) do(ctx context.Context, method, apiURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return response{}, &domain.NetworkError{URL: apiURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, &domain.NetworkError{URL: apiURL, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode >= 500 {
		return response{}, &domain.ServerError{URL: apiURL, StatusCode: resp.StatusCode, Status: resp.Status, Body: errorBody(body)}
	}
	if resp.StatusCode >= 400 {
		return response{}, &domain.ClientError{URL: apiURL, StatusCode: resp.StatusCode, Status: resp.Status, Body: errorBody(body)}
	}
	return response{body: body, header: resp.Header}, nil
}

func errorBody(body []byte) string {
	if len(body) > maxErrorBytes {
		body = body[:maxErrorBytes]
	}
	return strings.TrimSpace(string(body))
}

// hasNextPage reports whether an RFC 5988 Link header carries rel="next".
func hasNextPage(link string) bool {
	for _, part := range strings.Split(link, ",") {
		for _, param := range strings.Split(part, ";")[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return true
			}
		}
	}
	return false
}
