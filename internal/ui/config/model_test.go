package config

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
)

var ctx = context.Background()

type fakeBackend struct {
	checkErr error
	saveErr  error
	saved    []model.AppConfig
}

func (f *fakeBackend) Check(context.Context, model.AppConfig) error { return f.checkErr }

func (f *fakeBackend) Save(cfg model.AppConfig) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, cfg)
	return nil
}

func testConfig() model.AppConfig {
	var cfg model.AppConfig
	cfg.API.BaseURL = "http://localhost:5173/api"
	cfg.Realtime.BrokerURL = "ws://localhost:5173/ws"
	cfg.Realtime.TopicPrefix = "/topic/notifications/"
	cfg.Realtime.ToastTTLSec = 5
	return cfg
}

// result runs the validation command of a batch and returns its message.
func result(t *testing.T, cmd tea.Cmd) ValidateResultMsg {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(ValidateResultMsg); ok {
			return msg
		}
	}
	t.Fatal("no validation result in batch")
	return ValidateResultMsg{}
}

func press(m Model, s string) (Model, tea.Cmd) {
	switch s {
	case "enter":
		return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	}
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestModel_Summary(t *testing.T) {
	m := New(&fakeBackend{}, testConfig(), keys.DefaultKeyMap(), 80, 24)

	view := m.View()
	assert.Contains(t, view, "Settings")
	assert.Contains(t, view, "http://localhost:5173/api")
	assert.Contains(t, view, "5s")
	assert.False(t, m.Capturing())

	_, cmd := press(m, "esc")
	require.NotNil(t, cmd)
	assert.Equal(t, DoneMsg{}, cmd())
}

func TestModel_TestConnection(t *testing.T) {
	b := &fakeBackend{checkErr: errors.New("Unable to reach the server.")}
	m := New(b, testConfig(), keys.DefaultKeyMap(), 80, 24)

	m, cmd := press(m, "enter")
	assert.Equal(t, ModeValidating, m.mode)
	assert.True(t, m.Capturing())

	m, cmd = m.Update(result(t, cmd))
	assert.Nil(t, cmd)
	assert.Equal(t, ModeValidateResult, m.mode)
	assert.Contains(t, m.View(), "Connection failed")
	assert.Contains(t, m.View(), "Unable to reach the server.")

	b.checkErr = nil
	m, cmd = press(m, "r")
	m, _ = m.Update(result(t, cmd))
	assert.Contains(t, m.View(), "The server answered.")
	assert.Empty(t, b.saved)

	m, _ = press(m, "esc")
	assert.Equal(t, ModeSummary, m.mode)
}

func TestModel_SaveEdits(t *testing.T) {
	b := &fakeBackend{}
	m := New(b, testConfig(), keys.DefaultKeyMap(), 80, 24)

	m, _ = press(m, "e")
	require.Equal(t, ModeForm, m.mode)
	assert.Equal(t, "http://localhost:5173/api", m.fb.baseURL)
	assert.Equal(t, "5", m.fb.toastTTL)

	m.fb.baseURL = "https://social.example.com/api/ "
	m.fb.toastTTL = "8"
	draft, err := m.applyForm()
	require.NoError(t, err)
	m.draft = draft

	m, cmd := m.startValidation(true)
	m, cmd = m.Update(result(t, cmd))

	require.Len(t, b.saved, 1)
	assert.Equal(t, "https://social.example.com/api", b.saved[0].API.BaseURL)
	assert.Equal(t, 8, b.saved[0].Realtime.ToastTTLSec)
	assert.Equal(t, "https://social.example.com/api", m.Config().API.BaseURL)
	assert.Contains(t, m.View(), "Settings saved. Restart to apply.")

	require.NotNil(t, cmd)
	saved, ok := cmd().(SavedMsg)
	require.True(t, ok)
	assert.Equal(t, 8, saved.Config.Realtime.ToastTTLSec)
}

func TestModel_SaveFailure(t *testing.T) {
	b := &fakeBackend{saveErr: errors.New("read-only file system")}
	m := New(b, testConfig(), keys.DefaultKeyMap(), 80, 24)
	m.draft = testConfig()

	m, cmd := m.startValidation(true)
	m, cmd = m.Update(result(t, cmd))

	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "saving settings: read-only file system")
}

func TestModel_CancelIgnoresLateResult(t *testing.T) {
	m := New(&fakeBackend{}, testConfig(), keys.DefaultKeyMap(), 80, 24)

	m, _ = press(m, "enter")
	m, _ = press(m, "esc")
	assert.Equal(t, ModeSummary, m.mode)

	m, cmd := m.Update(ValidateResultMsg{Saved: true})
	assert.Nil(t, cmd)
	assert.Equal(t, ModeSummary, m.mode)
	assert.Contains(t, m.View(), "Cancelled.")
}

func TestValidators(t *testing.T) {
	web := validateURL("http", "https")
	assert.NoError(t, web("https://example.com/api"))
	assert.Error(t, web(""))
	assert.Error(t, web("example.com"))
	assert.Error(t, web("ws://example.com"))

	assert.NoError(t, validateURL("ws", "wss")("wss://example.com/ws"))

	assert.NoError(t, validateSeconds("5"))
	assert.Error(t, validateSeconds("0"))
	assert.Error(t, validateSeconds("soon"))

	assert.Error(t, validateRequired("Topic prefix")("  "))
}

func TestFileBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testConfig()
	cfg.API.BaseURL = srv.URL
	b := FileBackend{Path: filepath.Join(t.TempDir(), "config.yaml")}

	assert.NoError(t, b.Check(ctx, cfg), "an HTTP answer means the server is reachable")

	srv.Close()
	assert.Error(t, b.Check(ctx, cfg))

	require.NoError(t, b.Save(cfg))
	loaded, err := model.LoadConfig(b.Path)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, loaded.API.BaseURL)
}
