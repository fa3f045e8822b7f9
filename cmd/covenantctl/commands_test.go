package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/covenant/internal/api"
	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/store"
	"github.com/go-chi/chi/v5"
)

func newServer(t *testing.T) (string, string) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "covenants.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	c := &domain.Covenant{
		DisplayName:  "Ada",
		Answers:      domain.Answers{"a reflection long enough"},
		CovenantText: "I will keep\nmy phone out of the bedroom.",
	}
	if err := repo.CreateCovenant(context.Background(), c); err != nil {
		t.Fatalf("CreateCovenant failed: %v", err)
	}

	r := chi.NewRouter()
	api.NewHandler(api.Deps{Repo: repo}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL, c.ID
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	url, id := newServer(t)
	out, err := run(t, "--server", url, "list", "-n", "5")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Ada") {
		t.Errorf("Expected covenant row, got:\n%s", out)
	}
	if !strings.Contains(out, "I will keep my phone") {
		t.Errorf("Expected excerpt on one line, got:\n%s", out)
	}
}

func TestUpvoteCommand(t *testing.T) {
	t.Parallel()

	url, id := newServer(t)
	out, err := run(t, "--server", url, "upvote", id)
	if err != nil {
		t.Fatalf("upvote failed: %v", err)
	}
	if !strings.Contains(out, "now has 1 upvotes") {
		t.Errorf("Unexpected output %q", out)
	}

	_, err = run(t, "--server", url, "upvote", "6f1c1b9e-2f4e-4c57-9b0e-0d4f0c4a7a11")
	if err == nil || err.Error() != "Covenant not found" {
		t.Errorf("Expected not found error, got %v", err)
	}
}

func TestInsightsCommandJSON(t *testing.T) {
	t.Parallel()

	url, _ := newServer(t)
	out, err := run(t, "--server", url, "--json", "insights")
	if err != nil {
		t.Fatalf("insights failed: %v", err)
	}
	if !strings.Contains(out, `"totalCovenants": 1`) {
		t.Errorf("Unexpected output:\n%s", out)
	}
}

func TestBadServerURL(t *testing.T) {
	t.Parallel()

	if _, err := run(t, "--server", "ftp://nowhere", "list"); err == nil {
		t.Fatal("Expected error for non-http server URL")
	}
}
