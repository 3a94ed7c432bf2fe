package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/pkg/inventory"
)

func computeHMAC(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("webhook-secret-123")
	payload := []byte(`{"ref":"refs/heads/main"}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		wantErr   bool
	}{
		{"valid signature", payload, computeHMAC(payload, secret), false},
		{"wrong secret", payload, computeHMAC(payload, []byte("wrong-secret")), true},
		{"tampered payload", []byte(`{"ref":"refs/heads/dev"}`), computeHMAC(payload, secret), true},
		{"missing sha256= prefix", payload, "not-a-valid-sig", true},
		{"invalid hex after prefix", payload, "sha256=zzzz", true},
		{"empty signature", payload, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.payload, tc.signature, secret)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseEvent_UnsupportedType(t *testing.T) {
	for _, eventType := range []string{"pull_request", "installation", "unknown_event"} {
		if _, err := ParseEvent(eventType, []byte(`{}`)); err == nil {
			t.Errorf("expected error for %s, got nil", eventType)
		}
	}
}

func TestParseEvent_InvalidJSON(t *testing.T) {
	if _, err := ParseEvent("push", []byte(`{invalid json`)); err == nil {
		t.Error("expected error parsing invalid JSON, got nil")
	}
}

func TestIsDefaultBranch(t *testing.T) {
	tests := []struct {
		name          string
		ref           string
		defaultBranch string
		want          bool
	}{
		{"push to default branch", "refs/heads/main", "main", true},
		{"push to non-default branch", "refs/heads/feature/foo", "main", false},
		{"push to tag", "refs/tags/v1.0.0", "main", false},
		{"push to develop default branch", "refs/heads/develop", "develop", true},
		{"unknown default branch", "refs/heads/main", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &github.PushEvent{
				Ref:  github.String(tc.ref),
				Repo: &github.PushEventRepository{DefaultBranch: github.String(tc.defaultBranch)},
			}
			if got := isDefaultBranch(e); got != tc.want {
				t.Errorf("isDefaultBranch(%q, %q) = %v, want %v", tc.ref, tc.defaultBranch, got, tc.want)
			}
		})
	}
}

func TestPushTime(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	commit := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	pushed := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	withCommit := &github.PushEvent{
		HeadCommit: &github.HeadCommit{Timestamp: &github.Timestamp{Time: commit}},
		Repo:       &github.PushEventRepository{PushedAt: &github.Timestamp{Time: pushed}},
	}
	if got := pushTime(withCommit, now); !got.Equal(commit) {
		t.Errorf("pushTime = %v, want head commit time %v", got, commit)
	}

	withPushedAt := &github.PushEvent{Repo: &github.PushEventRepository{PushedAt: &github.Timestamp{Time: pushed}}}
	if got := pushTime(withPushedAt, now); !got.Equal(pushed) {
		t.Errorf("pushTime = %v, want pushed_at %v", got, pushed)
	}

	if got := pushTime(&github.PushEvent{}, now); !got.Equal(now) {
		t.Errorf("pushTime = %v, want now", got)
	}
}

type fakeStore struct {
	touched map[string]time.Time
	owners  map[string][]string
	apps    map[string][]inventory.Application
	repos   map[string][]inventory.Repository
}

func (f *fakeStore) TouchRepository(ctx context.Context, url string, t time.Time) (int64, error) {
	if len(f.owners[url]) == 0 {
		return 0, nil
	}
	f.touched[url] = t
	return int64(len(f.owners[url])), nil
}

func (f *fakeStore) ListRepositoryOwners(ctx context.Context, url string) ([]string, error) {
	return f.owners[url], nil
}

func (f *fakeStore) ListApplications(ctx context.Context, userID string) ([]inventory.Application, error) {
	return f.apps[userID], nil
}

func (f *fakeStore) ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error) {
	return f.repos[userID], nil
}

type fakeEnqueuer struct {
	queued []string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, appID string, delay time.Duration) *analysis.Job {
	f.queued = append(f.queued, appID)
	return &analysis.Job{ID: "job-" + appID, AppID: appID}
}

const dashURL = "https://github.com/acme/dash"

func newTestHandler(secret []byte) (*Handler, *fakeStore, *fakeEnqueuer) {
	st := &fakeStore{
		touched: map[string]time.Time{},
		owners:  map[string][]string{dashURL: {"u1"}},
		apps: map[string][]inventory.Application{
			"u1": {
				{ID: "a1", Name: "dash"},
				{ID: "a2", Name: "billing", Website: "https://billing.example.com"},
			},
		},
		repos: map[string][]inventory.Repository{
			"u1": {
				{Name: "dash", URL: dashURL, Platform: inventory.PlatformGitHub},
				{Name: "tools", URL: "https://github.com/acme/tools", Platform: inventory.PlatformGitHub},
			},
		},
	}
	jobs := &fakeEnqueuer{}
	log, _ := test.NewNullLogger()
	return NewHandler(secret, st, jobs, log), st, jobs
}

func pushPayload(t *testing.T, ref, url string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"ref":   ref,
		"after": "abc123",
		"repository": map[string]interface{}{
			"html_url":       url,
			"full_name":      "acme/dash",
			"default_branch": "main",
		},
		"head_commit": map[string]interface{}{
			"id":        "abc123",
			"timestamp": "2026-05-30T10:00:00Z",
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func send(h http.Handler, eventType string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/github", bytes.NewReader(body))
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP_PushQueuesMatchingApplications(t *testing.T) {
	secret := []byte("s3cret")
	h, st, jobs := newTestHandler(secret)

	body := pushPayload(t, "refs/heads/main", dashURL)
	rec := send(h, "push", body, computeHMAC(body, secret))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if want := time.Date(2026, 5, 30, 10, 0, 0, 0, time.UTC); !st.touched[dashURL].Equal(want) {
		t.Errorf("touched at %v, want %v", st.touched[dashURL], want)
	}
	if len(jobs.queued) != 1 || jobs.queued[0] != "a1" {
		t.Errorf("queued = %v, want [a1]", jobs.queued)
	}

	var resp struct {
		Push PushResult `json:"push"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Push.Touched != 1 || len(resp.Push.Jobs) != 1 || resp.Push.Jobs[0] != "job-a1" {
		t.Errorf("push result = %+v", resp.Push)
	}
}

func TestServeHTTP_PushNotifiesChangedOwners(t *testing.T) {
	secret := []byte("s3cret")
	h, st, _ := newTestHandler(secret)
	st.owners[dashURL] = []string{"u1", "u2"}

	var changed []string
	h.OnRepositoriesChanged = func(userID string) { changed = append(changed, userID) }

	body := pushPayload(t, "refs/heads/main", dashURL)
	if rec := send(h, "push", body, computeHMAC(body, secret)); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(changed) != 2 || changed[0] != "u1" || changed[1] != "u2" {
		t.Errorf("changed = %v, want [u1 u2]", changed)
	}

	changed = nil
	body = pushPayload(t, "refs/heads/main", "https://github.com/acme/unknown")
	send(h, "push", body, computeHMAC(body, secret))
	if len(changed) != 0 {
		t.Errorf("untracked push notified %v", changed)
	}
}

func TestServeHTTP_PushIgnored(t *testing.T) {
	secret := []byte("s3cret")
	tests := []struct {
		name string
		ref  string
		url  string
	}{
		{"feature branch", "refs/heads/feature/x", dashURL},
		{"untracked repository", "refs/heads/main", "https://github.com/acme/unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _, jobs := newTestHandler(secret)
			body := pushPayload(t, tc.ref, tc.url)
			rec := send(h, "push", body, computeHMAC(body, secret))
			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want 202", rec.Code)
			}
			if len(jobs.queued) != 0 {
				t.Errorf("queued = %v, want none", jobs.queued)
			}
		})
	}
}

func TestServeHTTP_Rejections(t *testing.T) {
	secret := []byte("s3cret")
	h, _, _ := newTestHandler(secret)
	body := pushPayload(t, "refs/heads/main", dashURL)

	if rec := send(h, "push", body, computeHMAC(body, []byte("other"))); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d, want 401", rec.Code)
	}
	if rec := send(h, "", body, computeHMAC(body, secret)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing event: status = %d, want 400", rec.Code)
	}
	if rec := send(h, "issues", body, computeHMAC(body, secret)); rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported event: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/webhooks/github", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}

func TestServeHTTP_Ping(t *testing.T) {
	secret := []byte("s3cret")
	h, _, _ := newTestHandler(secret)
	body := []byte(`{"zen":"Keep it logically awesome.","hook_id":1}`)

	rec := send(h, "ping", body, computeHMAC(body, secret))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"pong"`)) {
		t.Errorf("body = %s, want pong", rec.Body.String())
	}
}
