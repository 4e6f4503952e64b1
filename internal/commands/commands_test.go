package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/mentor"
)

func testFlags(t *testing.T) *Flags {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.UserID = "tester"
	cfg.Gateway.Provider = config.ProviderCanned
	cfg.Gateway.Canned.Delay = time.Millisecond
	cfg.Storage.Backend = config.BackendJSONFile
	cfg.Storage.PollInterval = 10 * time.Millisecond

	return &Flags{
		ConfigPath: cfg.DataDir + "/config.yaml",
		DataDir:    cfg.DataDir,
		Config:     &cfg,
	}
}

type registrar interface {
	Register(app *cli.Command) *cli.Command
}

// runApp runs args against a root command with cmd registered and returns
// everything written to the root writer.
func runApp(t *testing.T, cmd registrar, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := &cli.Command{
		Name:           "mentor",
		Writer:         &out,
		ErrWriter:      &out,
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	cmd.Register(app)

	err := app.Run(context.Background(), append([]string{"mentor"}, args...))
	return out.String(), err
}

func TestReadText(t *testing.T) {
	text, err := readText([]string{"my", "rights"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "my rights", text)

	text, err = readText(nil, strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", text)
}

func TestClassifyCmd(t *testing.T) {
	tests := []struct {
		args []string
		want chat.Category
	}{
		{[]string{"I", "feel", "sick"}, chat.CategoryHealth},
		{[]string{"know", "my", "rights"}, chat.CategoryLegal},
		{[]string{"hello"}, chat.CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runApp(t, NewClassifyCmd(testFlags(t)), append([]string{"classify"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, string(tt.want)+"\n", out)
		})
	}
}

func TestClassifyCmd_JSONFromStdin(t *testing.T) {
	cmd := NewClassifyCmd(testFlags(t))
	cmd.stdin = strings.NewReader("looking for a job")

	out, err := runApp(t, cmd, "classify", "--json")
	require.NoError(t, err)

	var got struct {
		Text     string        `json:"text"`
		Category chat.Category `json:"category"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "looking for a job", got.Text)
	assert.Equal(t, chat.CategoryCareer, got.Category)
}

func TestAskCmd_JSON(t *testing.T) {
	flags := testFlags(t)

	out, err := runApp(t, NewAskCmd(flags), "ask", "--json", "Career", "advice")
	require.NoError(t, err)

	var got askResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, mentor.OutcomeReplied, got.Outcome)
	assert.Equal(t, chat.CategoryCareer, got.Category)
	assert.NotEmpty(t, got.Reply)
	assert.Empty(t, got.Error)
}

func TestAskCmd_Unconfigured(t *testing.T) {
	flags := testFlags(t)
	flags.Config.Gateway.Provider = config.ProviderOpenAI
	flags.Config.Gateway.OpenAI.APIKeyEnv = "MENTOR_COMMANDS_TEST_UNSET"

	out, err := runApp(t, NewAskCmd(flags), "ask", "--json", "--no-save", "hello")
	require.Error(t, err)

	var got askResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, mentor.OutcomeFailed, got.Outcome)
	assert.Equal(t, chat.KindUnconfigured, got.Kind)
}

func TestAskThenHistory(t *testing.T) {
	flags := testFlags(t)

	_, err := runApp(t, NewAskCmd(flags), "ask", "I", "feel", "sick")
	require.NoError(t, err)
	_, err = runApp(t, NewAskCmd(flags), "ask", "what", "are", "my", "rights")
	require.NoError(t, err)

	out, err := runApp(t, NewHistoryCmd(flags), "history", "--json")
	require.NoError(t, err)

	var msgs []chat.Message
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var m chat.Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		msgs = append(msgs, m)
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, chat.SenderUser, msgs[0].Sender)
	assert.Equal(t, "I feel sick", msgs[0].Content)
	assert.Equal(t, chat.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, chat.CategoryHealth, msgs[1].Category)
	assert.Equal(t, chat.CategoryLegal, msgs[3].Category)

	out, err = runApp(t, NewHistoryCmd(flags), "history", "--json", "--category", "LEGAL")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	out, err = runApp(t, NewHistoryCmd(flags), "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mentor")
	assert.NotContains(t, out, "I feel sick")
}

func TestHistoryCmd_InvalidCategory(t *testing.T) {
	_, err := runApp(t, NewHistoryCmd(testFlags(t)), "history", "--category", "sports")
	require.ErrorIs(t, err, chat.ErrInvalidCategory)
}

func TestCommands_RejectInvalidUser(t *testing.T) {
	tests := []struct {
		name string
		cmd  func(*Flags) registrar
		args []string
	}{
		{"ask", func(f *Flags) registrar { return NewAskCmd(f) }, []string{"ask", "--user", "a/b", "--no-save", "hi"}},
		{"history", func(f *Flags) registrar { return NewHistoryCmd(f) }, []string{"history", "--user", "a/b"}},
		{"history dot dot", func(f *Flags) registrar { return NewHistoryCmd(f) }, []string{"history", "--user", ".."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := testFlags(t)
			_, err := runApp(t, tt.cmd(flags), tt.args...)
			require.ErrorIs(t, err, chat.ErrInvalidUser)

			entries, err := os.ReadDir(flags.DataDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing written for a rejected user")
		})
	}
}

func TestHistoryCmd_FollowSnapshots(t *testing.T) {
	cmd := NewHistoryCmd(testFlags(t))
	cmd.json = true

	m1 := chat.Message{ID: "1", Content: "hi", Sender: chat.SenderUser, Category: chat.CategoryGeneral, CreatedAt: time.Now()}
	m2 := chat.Message{ID: "2", Content: "hello", Sender: chat.SenderAssistant, Category: chat.CategoryGeneral, CreatedAt: time.Now()}

	snaps := make(chan chat.Snapshot, 3)
	snaps <- chat.Snapshot{Messages: []chat.Message{m1}}
	snaps <- chat.Snapshot{Err: assert.AnError}
	snaps <- chat.Snapshot{Messages: []chat.Message{m1, m2}}
	close(snaps)

	var out bytes.Buffer
	received, err := cmd.followSnapshots(context.Background(), &out, snaps, map[string]bool{})
	require.NoError(t, err)
	assert.True(t, received)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"1"`)
	assert.Contains(t, lines[1], `"id":"2"`)
}

// closingStore hands out one scripted batch per Subscribe call and closes
// the channel after it. Once the batches run out it calls done and keeps the
// last channel open until ctx ends.
type closingStore struct {
	batches    [][]chat.Snapshot
	done       func()
	subscribes int
}

func (s *closingStore) Append(context.Context, string, chat.Message) (chat.Message, error) {
	return chat.Message{}, errors.New("read only")
}

func (s *closingStore) Subscribe(ctx context.Context, _ string, _ int) (<-chan chat.Snapshot, error) {
	s.subscribes++

	if len(s.batches) == 0 {
		s.done()
		ch := make(chan chat.Snapshot)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}

	batch := s.batches[0]
	s.batches = s.batches[1:]

	ch := make(chan chat.Snapshot, len(batch))
	for _, snap := range batch {
		ch <- snap
	}
	close(ch)
	return ch, nil
}

func TestHistoryCmd_FollowResubscribes(t *testing.T) {
	cmd := NewHistoryCmd(testFlags(t))
	cmd.json = true
	cmd.retry = &backoff.ZeroBackOff{}

	m1 := chat.Message{ID: "1", Content: "hi", Sender: chat.SenderUser, Category: chat.CategoryGeneral, CreatedAt: time.Now()}
	m2 := chat.Message{ID: "2", Content: "hello", Sender: chat.SenderAssistant, Category: chat.CategoryGeneral, CreatedAt: time.Now()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &closingStore{
		batches: [][]chat.Snapshot{
			{{Messages: []chat.Message{m1}}, {Err: assert.AnError}},
			{{Messages: []chat.Message{m1, m2}}},
		},
		done: cancel,
	}

	var out bytes.Buffer
	require.NoError(t, cmd.followStore(ctx, &out, store, "tester", 10))

	assert.Equal(t, 3, store.subscribes)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"1"`)
	assert.Contains(t, lines[1], `"id":"2"`)
}

func TestHistoryCmd_FollowSubscribeError(t *testing.T) {
	cmd := NewHistoryCmd(testFlags(t))

	err := cmd.followStore(context.Background(), io.Discard, failingSubscribeStore{}, "tester", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe")
}

type failingSubscribeStore struct{}

func (failingSubscribeStore) Append(context.Context, string, chat.Message) (chat.Message, error) {
	return chat.Message{}, errors.New("unavailable")
}

func (failingSubscribeStore) Subscribe(context.Context, string, int) (<-chan chat.Snapshot, error) {
	return nil, errors.New("unavailable")
}

func TestConfigValidateCmd_JSON(t *testing.T) {
	flags := testFlags(t)
	flags.ConfigPath = ""

	out, err := runApp(t, NewConfigCmd(flags), "config", "validate", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Valid    bool                       `json:"valid"`
		Warnings []config.ValidationWarning `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Valid)
	assert.NotEmpty(t, got.Warnings)
}

func TestConfigCmd_ShowRedactsKeys(t *testing.T) {
	flags := testFlags(t)
	flags.Config.Gateway.OpenAI.APIKey = "sk-secret"

	out, err := runApp(t, NewConfigCmd(flags), "config", "show")
	require.NoError(t, err)

	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "api_key: <redacted>")
	assert.Contains(t, out, "provider: canned")
	assert.Contains(t, out, "# data dir: "+flags.DataDir)
	assert.Equal(t, "sk-secret", flags.Config.Gateway.OpenAI.APIKey, "loaded config is untouched")
}

func TestInitCmd(t *testing.T) {
	flags := testFlags(t)

	_, err := runApp(t, NewInitCmd(flags), "init", "--yes", "--set", "user_id=ana", "--set", "provider=openai", "--set", "backend=sqlite")
	require.NoError(t, err)

	cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
	require.NoError(t, err)
	assert.Equal(t, "ana", cfg.UserID)
	assert.Equal(t, config.ProviderOpenAI, cfg.Gateway.Provider)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)

	_, err = runApp(t, NewInitCmd(flags), "init", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runApp(t, NewInitCmd(flags), "init", "--yes", "--force", "--set", "color=blue")
	require.Error(t, err)
}

func TestDoctorCmd_JSON(t *testing.T) {
	flags := testFlags(t)
	flags.ConfigPath = ""

	out, err := runApp(t, NewDoctorCmd(flags), "doctor", "--format", "json", "--ping")
	require.NoError(t, err)

	var got struct {
		Healthy bool `json:"healthy"`
		Checks  []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Healthy)
	require.Len(t, got.Checks, 3)
	assert.Equal(t, "Storage", got.Checks[1].Name)
}

func TestDoctorCmd_Only(t *testing.T) {
	flags := testFlags(t)

	out, err := runApp(t, NewDoctorCmd(flags), "doctor", "--format", "json", "--only", "store")
	require.NoError(t, err)

	var got struct {
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Checks, 1)
	assert.Equal(t, "Storage", got.Checks[0].Name)

	_, err = runApp(t, NewDoctorCmd(flags), "doctor", "--only", "network")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown check "network"`)
}
