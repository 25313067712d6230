package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/newsflow/internal/controller"
	"github.com/unclebandit/newsflow/internal/mailer"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/queue"
	"github.com/unclebandit/newsflow/internal/repository"
	"github.com/unclebandit/newsflow/internal/service"
	"github.com/unclebandit/newsflow/internal/store"
)

// --- Mocks ---

type MockSender struct {
	mu      sync.Mutex
	sent    []mailer.Email
	failFor map[string]error
}

func (m *MockSender) Send(_ context.Context, email *mailer.Email) (*mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *email)
	if err, ok := m.failFor[email.To]; ok {
		return nil, err
	}
	return &mailer.SendResult{ID: "msg-" + email.To}, nil
}

func (m *MockSender) Sent() []mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Email(nil), m.sent...)
}

// --- Fixture ---

type testServer struct {
	backend *store.MemoryBackend
	sender  *MockSender
	queue   *queue.InMemoryQueue
	router  http.Handler
}

func newTestServer(t *testing.T, withQueue bool) *testServer {
	t.Helper()
	backend := store.NewMemoryBackend()
	campaigns := &repository.CampaignRepository{Store: backend}
	sender := &MockSender{failFor: map[string]error{}}

	newsletter := &service.NewsletterService{
		Sender:    sender,
		Pacer:     &service.FixedPacer{},
		BaseURL:   "https://news.example.com",
		Campaigns: campaigns,
	}
	tracking := &service.TrackingService{
		Events:    &repository.EventRepository{Store: backend},
		Campaigns: campaigns,
	}

	ts := &testServer{backend: backend, sender: sender}
	deps := controller.Dependencies{
		Subscribers: &repository.SubscriberRepository{Store: backend},
		Campaigns:   campaigns,
		Batches:     &repository.BatchRepository{Store: backend},
		Tracking:    tracking,
		Newsletter:  newsletter,
	}
	if withQueue {
		ts.queue = queue.NewInMemoryQueue()
		require.NoError(t, service.NewSendWorker(newsletter).Start(ts.queue))
		deps.Queue = ts.queue
	}
	ts.router = controller.NewRouter(deps)
	return ts
}

func (ts *testServer) seed(t *testing.T, key, raw string) {
	t.Helper()
	require.NoError(t, ts.backend.Write(context.Background(), key, []byte(raw)))
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const campaignFixture = `[{"id":1712345678901,"name":"October","subject":"Hello","recipients":[{"email":"alice@example.com","name":"Alice"}],"opened":0,"clicked":0}]`

// --- Campaigns ---

func TestGetCampaignByNumericID(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seed(t, repository.KeyCampaigns, campaignFixture)

	rr := ts.do(t, http.MethodGet, "/campaigns/1712345678901", "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "October", body["name"])
	assert.Equal(t, float64(1712345678901), body["id"])
}

func TestGetCampaignNotFound(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seed(t, repository.KeyCampaigns, campaignFixture)

	rr := ts.do(t, http.MethodGet, "/campaigns/999", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Campaign not found", decode(t, rr)["error"])
}

func TestReplaceCampaignsRequiresArray(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/campaigns", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodPost, "/campaigns", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReplaceThenListCampaignsKeepsUnknownFields(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/campaigns", `{"campaigns":[{"id":"c-1","status":"draft","recipients":[]}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["success"])

	rr = ts.do(t, http.MethodGet, "/campaigns", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":"c-1","status":"draft","recipients":[],"opened":0,"clicked":0}]`, rr.Body.String())
}

func TestReplaceCampaignsAcceptsLocaleTimestamps(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/campaigns",
		`{"campaigns":[{"id":9,"recipients":[{"email":"a@example.com","sentAt":"1/2/2024, 10:00:00 AM"}]}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/campaigns/9", "")
	require.Equal(t, http.StatusOK, rr.Code)
	recipients := decode(t, rr)["recipients"].([]any)
	require.Len(t, recipients, 1)
	assert.Equal(t, "1/2/2024, 10:00:00 AM", recipients[0].(map[string]any)["sentAt"])
}

func TestReconcileCampaign(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seed(t, repository.KeyCampaigns, campaignFixture)
	ts.seed(t, repository.KeyTrackingEvents,
		`[{"id":"e1","type":"open","campaignId":"1712345678901","email":"ALICE@example.com","url":null,"timestamp":"2024-10-01T09:00:00Z"}]`)

	rr := ts.do(t, http.MethodPost, "/campaigns/1712345678901/reconcile", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["changes"])

	rr = ts.do(t, http.MethodGet, "/campaigns/1712345678901", "")
	assert.Equal(t, float64(1), decode(t, rr)["opened"])

	rr = ts.do(t, http.MethodPost, "/campaigns/42/reconcile", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- Subscribers and batches ---

func TestReplaceSubscribersDedupes(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/subscribers",
		`{"subscribers":[{"email":"a@example.com","name":"A"},{"email":"A@example.com","name":"A2"},{"email":"b@example.com"}]}`)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	rr = ts.do(t, http.MethodGet, "/subscribers", "")
	var subs []model.Subscriber
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &subs))
	assert.Len(t, subs, 2)
}

func TestReplaceSubscribersMissingArray(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/subscribers", `{}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["error"], "subscribers")
}

func TestListSubscribersEmpty(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodGet, "/subscribers", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestPendingBatchesRoundTrip(t *testing.T) {
	ts := newTestServer(t, false)
	batch := `{"id":"b-1","campaignId":7,"subscribers":[{"email":"a@example.com"}],"anything":{"nested":true}}`

	rr := ts.do(t, http.MethodPost, "/pending-batches", `{"batches":[`+batch+`]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["count"])

	rr = ts.do(t, http.MethodGet, "/pending-batches", "")
	assert.JSONEq(t, `[`+batch+`]`, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/pending-batches", `{"batch":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- Sending ---

func TestSendEmail(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/send-email", `{"to":"a@example.com","subject":"Hi","html":"<p>x</p>"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": "msg-a@example.com"}, body["data"])
	require.Len(t, ts.sender.Sent(), 1)
	assert.Equal(t, "<p>x</p>", ts.sender.Sent()[0].HTML)
}

func TestSendEmailProviderFailureIsReportedInBody(t *testing.T) {
	ts := newTestServer(t, false)
	ts.sender.failFor["bad@example.com"] = &mailer.ProviderError{Provider: "resend", Status: 422, Message: "Invalid `to` field"}

	rr := ts.do(t, http.MethodPost, "/send-email", `{"to":"bad@example.com","subject":"Hi","html":""}`)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid `to` field", body["error"])
}

func TestSendEmailRequiresRecipient(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/send-email", `{"subject":"Hi"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, ts.sender.Sent())
}

func TestSendNewsletterPartialFailure(t *testing.T) {
	ts := newTestServer(t, false)
	ts.sender.failFor["b@example.com"] = &mailer.ProviderError{Provider: "resend", Status: 422, Message: "rejected"}

	rr := ts.do(t, http.MethodPost, "/send-newsletter", `{
		"subscribers":[{"email":"a@example.com"},{"email":"b@example.com"},{"email":"c@example.com"}],
		"subject":"News","html":"<a href=\"https://example.com\">x</a>","campaignId":42}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var result service.SendResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, service.SendError{Email: "b@example.com", Error: "rejected"}, result.Errors[0])

	sent := ts.sender.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].HTML, "https://news.example.com/track/click/42/a%40example.com?url=https%3A%2F%2Fexample.com")
}

func TestSendNewsletterRequiresSubscribers(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/send-newsletter", `{"subject":"x","html":"y","campaignId":1}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueueNewsletter(t *testing.T) {
	ts := newTestServer(t, true)
	ts.seed(t, repository.KeyCampaigns, campaignFixture)

	rr := ts.do(t, http.MethodPost, "/send-newsletter/queue", `{
		"subscribers":[{"email":"alice@example.com"},{"email":"new@example.com","name":"New"}],
		"subject":"News","html":"<p>hi</p>","campaignId":1712345678901}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["queued"])
	assert.Equal(t, float64(1712345678901), body["campaignId"])

	ts.queue.Wait()
	assert.Len(t, ts.sender.Sent(), 2)

	rr = ts.do(t, http.MethodGet, "/campaigns/1712345678901", "")
	var c model.Campaign
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.Len(t, c.Recipients, 2)
	assert.NotNil(t, c.Recipients[0].SentAt)
	assert.Equal(t, "new@example.com", c.Recipients[1].Email)
}

func TestQueueNewsletterWithoutQueue(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/send-newsletter/queue", `{"subscribers":[],"campaignId":1}`)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// --- Stats ---

func TestTrackingRoundTripThroughRouter(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seed(t, repository.KeyCampaigns, campaignFixture)

	ts.do(t, http.MethodGet, "/track/open/1712345678901/alice%40example.com", "")
	ts.do(t, http.MethodGet, "/track/open/1712345678901/bob%40example.com", "")
	rr := ts.do(t, http.MethodGet, "/track/click/1712345678901/alice%40example.com?url=https%3A%2F%2Fexample.com%2Fa", "")
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/campaign-stats/1712345678901", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats model.CampaignStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalOpens)
	assert.Equal(t, 2, stats.UniqueOpens)
	assert.Equal(t, 1, stats.TotalClicks)
	assert.Equal(t, 1, stats.UniqueClicks)
	assert.Equal(t, []string{"alice@example.com"}, stats.ClickedBy)

	rr = ts.do(t, http.MethodGet, "/tracking-events", "")
	var events []model.TrackingEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	assert.Len(t, events, 3)

	rr = ts.do(t, http.MethodGet, "/campaigns/1712345678901", "")
	body := decode(t, rr)
	assert.Equal(t, float64(1), body["opened"])
	assert.Equal(t, float64(1), body["clicked"])
}

func TestCampaignStatsUnknownCampaign(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodGet, "/campaign-stats/nope", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"campaignId":"nope","totalOpens":0,"uniqueOpens":0,"totalClicks":0,"uniqueClicks":0,"openedBy":[],"clickedBy":[],"events":[]}`, rr.Body.String())
}

// --- Health and CORS ---

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, controller.AppName, body["app"])
	assert.Equal(t, controller.AppVersion, body["version"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)

	rr = ts.do(t, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestCORSIsOpen(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/campaigns", nil)
	req.Header.Set("Origin", "https://dashboard.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
