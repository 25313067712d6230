package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/config"
	"github.com/unclebandit/newsflow/internal/mailer"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/repository"
	"github.com/unclebandit/newsflow/internal/service"
)

type MockSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (m *MockSender) Send(_ context.Context, email *mailer.Email) (*mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email.To)
	if m.failFor[email.To] {
		return nil, &mailer.ProviderError{Provider: "resend", Status: 422, Message: "rejected"}
	}
	return &mailer.SendResult{ID: "msg"}, nil
}

type cliFixture struct {
	app    *app.App
	sender *MockSender
}

func newFixture(t *testing.T) *cliFixture {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Type = config.StorageMemory

	a, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	sender := &MockSender{failFor: map[string]bool{}}
	a.Newsletter.Sender = sender
	a.Newsletter.Pacer = &service.FixedPacer{}
	return &cliFixture{app: a, sender: sender}
}

func (f *cliFixture) seed(t *testing.T, key, raw string) {
	t.Helper()
	require.NoError(t, f.app.Store.Write(context.Background(), key, []byte(raw)))
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{Open: func(context.Context, string) (*app.App, error) { return f.app, nil }}
	cmd := newRootCommand(opts)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "newsflow", cmd.Use)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"batches", "list"},
		{"batches", "send"},
		{"stats"},
		{"reconcile"},
		{"import-subscribers"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "--format", "xml", "batches", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestOpenFailureIsCommandError(t *testing.T) {
	opts := &RootOptions{Open: func(context.Context, string) (*app.App, error) {
		return nil, os.ErrNotExist
	}}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"stats", "1"})

	err := cmd.Execute()

	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

const batchesFixture = `[
	{"id":"b-1","campaignId":42,"subject":"First","html":"<p>1</p>","subscribers":[{"email":"a@example.com"},{"email":"b@example.com"}]},
	{"id":"b-2","campaignId":43,"subject":"Second","html":"<p>2</p>","subscribers":[{"email":"c@example.com"}]}
]`

func TestBatchesListText(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)

	out, err := f.run(t, "batches", "list")

	require.NoError(t, err)
	assert.Contains(t, out, `[0] id=b-1 campaign=42 subscribers=2 subject="First"`)
	assert.Contains(t, out, `[1] id=b-2 campaign=43 subscribers=1 subject="Second"`)
}

func TestBatchesListEmpty(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "batches", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No pending batches")
}

func TestBatchesListJSON(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)

	out, err := f.run(t, "--format", "json", "batches", "list")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []BatchSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "b-2", resp.Data[1].ID.String())
	assert.Equal(t, 1, resp.Data[1].Subscribers)
}

func TestBatchesSendByIDRemovesBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)
	f.seed(t, repository.KeyCampaigns, `[{"id":43,"recipients":[]}]`)
	ctx := context.Background()

	out, err := f.run(t, "batches", "send", "b-2")

	require.NoError(t, err)
	assert.Contains(t, out, "Sent 1, failed 0")
	assert.Equal(t, []string{"c@example.com"}, f.sender.sent)

	batches, err := f.app.Batches.List(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Contains(t, string(batches[0]), `"b-1"`)

	c, err := f.app.Campaigns.GetByID(ctx, model.ParseID("43"))
	require.NoError(t, err)
	require.Len(t, c.Recipients, 1)
	assert.Equal(t, "c@example.com", c.Recipients[0].Email)
	assert.NotNil(t, c.Recipients[0].SentAt)
}

func TestBatchesSendByIndexKeep(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)

	_, err := f.run(t, "batches", "send", "0", "--keep")

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, f.sender.sent)
	batches, err := f.app.Batches.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestBatchesSendReportsFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)
	f.sender.failFor["b@example.com"] = true

	out, err := f.run(t, "batches", "send", "b-1")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Sent 1, failed 1")
	assert.Contains(t, out, "b@example.com: rejected")
}

func TestBatchesSendUnknown(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyPendingBatches, batchesFixture)

	out, err := f.run(t, "batches", "send", "7")

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `no pending batch "7"`)
	assert.Empty(t, f.sender.sent)
}

const eventsFixture = `[
	{"id":"1","type":"open","campaignId":42,"email":"a@example.com","url":null,"timestamp":"2024-10-01T09:00:00Z"},
	{"id":"2","type":"open","campaignId":"42","email":"A@example.com","url":null,"timestamp":"2024-10-01T09:05:00Z"},
	{"id":"3","type":"click","campaignId":42,"email":"b@example.com","url":"https://example.com","timestamp":"2024-10-01T09:06:00Z"},
	{"id":"4","type":"open","campaignId":7,"email":"z@example.com","url":null,"timestamp":"2024-10-01T09:07:00Z"}
]`

func TestStatsText(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyTrackingEvents, eventsFixture)

	out, err := f.run(t, "stats", "42", "--events")

	require.NoError(t, err)
	assert.Contains(t, out, "Opens:  2 total, 1 unique")
	assert.Contains(t, out, "Clicks: 1 total, 1 unique")
	assert.Contains(t, out, "Opened by:  a@example.com")
	assert.Contains(t, out, "click b@example.com https://example.com")
}

func TestStatsJSON(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyTrackingEvents, eventsFixture)

	out, err := f.run(t, "--format", "json", "stats", "42")
	require.NoError(t, err)

	var resp struct {
		Data model.CampaignStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.TotalOpens)
	assert.Equal(t, 1, resp.Data.UniqueClicks)
	assert.Empty(t, resp.Data.Events)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeyTrackingEvents, eventsFixture)
	f.seed(t, repository.KeyCampaigns, `[{"id":42,"recipients":[{"email":"a@example.com"},{"email":"b@example.com"}]}]`)

	out, err := f.run(t, "reconcile", "42")

	require.NoError(t, err)
	assert.Contains(t, out, "Campaign 42: 2 changes")

	c, err := f.app.Campaigns.GetByID(context.Background(), model.ParseID("42"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Opened)
	assert.Equal(t, 1, c.Clicked)
}

func TestReconcileUnknownCampaign(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "reconcile", "99")

	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestImportSubscribersYAMLMerges(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeySubscribers, `[{"email":"a@example.com","name":"Old"},{"email":"keep@example.com"}]`)
	path := filepath.Join(t.TempDir(), "subs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`subscribers:
  - email: A@example.com
    name: New
    company: Acme
  - email: c@example.com
`), 0o644))

	out, err := f.run(t, "import-subscribers", path)

	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 subscribers")
	assert.Contains(t, out, "(3 total)")

	subs, err := f.app.Subscribers.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "New", subs[0].Name)
	assert.JSONEq(t, `"Acme"`, string(subs[0].Extra["company"]))
}

func TestImportSubscribersJSONReplace(t *testing.T) {
	f := newFixture(t)
	f.seed(t, repository.KeySubscribers, `[{"email":"gone@example.com"}]`)
	path := filepath.Join(t.TempDir(), "subs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"email":"x@example.com"},{"email":"X@example.com","name":"X"}]`), 0o644))

	out, err := f.run(t, "--format", "json", "import-subscribers", path, "--replace")
	require.NoError(t, err)

	var resp struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, map[string]int{"imported": 2, "total": 1}, resp.Data)
}

func TestImportSubscribersRejectsMissingEmail(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "subs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"nobody"}]`), 0o644))

	out, err := f.run(t, "import-subscribers", path)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "has no email")
}
