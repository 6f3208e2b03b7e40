package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/askcv/askcv/engine/domain"
)

type fakeChat struct {
	reply reply
	err   error
	asked []string
}

func (f *fakeChat) Ask(_ context.Context, q string) (reply, error) {
	f.asked = append(f.asked, q)
	return f.reply, f.err
}

func (f *fakeChat) Health(context.Context) (bool, error) { return true, nil }

func submit(t *testing.T, m model, text string) (model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model), cmd
}

func TestModel_AskRecordsTurn(t *testing.T) {
	fc := &fakeChat{reply: reply{Text: "Skills: X, Y", Status: domain.StatusSuccess}}
	m := newModel(fc)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(model)

	m, cmd := submit(t, m, "  what are your skills?  ")
	if cmd == nil || m.pending != "what are your skills?" || m.input.Value() != "" {
		t.Fatalf("expected a pending question, got pending=%q input=%q", m.pending, m.input.Value())
	}

	next, _ = m.Update(cmd())
	m = next.(model)
	if len(m.turns) != 1 || m.pending != "" {
		t.Fatalf("expected one completed turn, got %+v", m.turns)
	}
	if m.turns[0].UserMessage != "what are your skills?" || m.turns[0].AssistantResponse != "Skills: X, Y" {
		t.Fatalf("unexpected turn %+v", m.turns[0])
	}
	if !strings.Contains(m.View(), "askcv") {
		t.Error("view missing header")
	}
}

func TestModel_IgnoresEmptyAndConcurrentQuestions(t *testing.T) {
	fc := &fakeChat{reply: reply{Text: "ok", Status: domain.StatusSuccess}}
	m := newModel(fc)

	if _, cmd := submit(t, m, "   "); cmd != nil {
		t.Fatal("empty question must not be sent")
	}
	m, _ = submit(t, m, "first")
	if _, cmd := submit(t, m, "second"); cmd != nil {
		t.Fatal("a second question must wait for the first answer")
	}
}

func TestModel_ErrorReplies(t *testing.T) {
	fc := &fakeChat{err: errors.New("connection refused")}
	m := newModel(fc)
	m, cmd := submit(t, m, "hello")
	next, _ := m.Update(cmd())
	m = next.(model)
	if len(m.turns) != 1 || !strings.Contains(m.turns[0].AssistantResponse, "connection refused") {
		t.Fatalf("unexpected turns %+v", m.turns)
	}

	fc.err = nil
	fc.reply = reply{Text: "Sorry", Status: domain.StatusError}
	m, cmd = submit(t, m, "again")
	next, _ = m.Update(cmd())
	m = next.(model)
	if m.status != "The assistant could not answer." {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModel_Quit(t *testing.T) {
	_, cmd := newModel(&fakeChat{}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestClient_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			w.Write([]byte(`{"response":"Skills: X, Y","status":"success"}`))
		case "/health":
			w.Write([]byte(`{"status":"ok","model_loaded":true}`))
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", time.Second)
	r, err := c.Ask(context.Background(), "skills?")
	if err != nil || r.Text != "Skills: X, Y" || r.Status != domain.StatusSuccess {
		t.Fatalf("got %+v, %v", r, err)
	}
	ok, err := c.Health(context.Background())
	if err != nil || !ok {
		t.Fatalf("health: %v %v", ok, err)
	}
}

func TestClient_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"No message provided"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, time.Second).Ask(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "No message provided") {
		t.Fatalf("expected server error text, got %v", err)
	}
}
