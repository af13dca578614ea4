package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		dialect Dialect
		source  string
	}{
		{"postgres://u:p@localhost/db", DialectPostgres, "postgres://u:p@localhost/db"},
		{"postgresql://localhost/db", DialectPostgres, "postgresql://localhost/db"},
		{"sqlite://data/history.db", DialectSQLite, "data/history.db"},
		{"history.db", DialectSQLite, "history.db"},
		{"file:history.db?cache=shared", DialectSQLite, "file:history.db?cache=shared"},
	}
	for _, tt := range tests {
		d, s := ParseDSN(tt.dsn)
		if d != tt.dialect || s != tt.source {
			t.Errorf("ParseDSN(%q) = %s, %q; want %s, %q", tt.dsn, d, s, tt.dialect, tt.source)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &DB{Dialect: DialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestHistoryRecordAndList(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "history.db")
	db, err := Open(ctx, Config{DSN: dsn}, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close(discardLogger())

	if err := db.HealthCheck(ctx, time.Second); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	repo := NewHistoryRepository(db, discardLogger())
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := entity.ExportRun{
		ID:         uuid.New(),
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		State:      "COMPLETED",
		Results: []entity.ExportResult{
			{
				Job: entity.ExportJob{
					SourcePath:  "/in/a.pdf",
					OutputPath:  "/out/Acme/2024.pdf",
					ProfileName: "Inv",
					PagesGroup: []entity.PageRecord{
						{SourcePath: "/in/a.pdf", PageNumber: 0},
						{SourcePath: "/in/a.pdf", PageNumber: 2},
					},
				},
				Success:  true,
				Duration: 150 * time.Millisecond,
			},
			{
				Job:     entity.ExportJob{SourcePath: "/in/b.pdf", PageNumber: 1, OutputPath: "/out/x.pdf", ProfileName: "Inv"},
				Success: false,
				Error:   "disk full",
			},
		},
	}
	if err := repo.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].ID != run.ID || runs[0].Succeeded != 1 || runs[0].Failed != 1 || runs[0].State != "COMPLETED" {
		t.Errorf("unexpected run summary: %+v", runs[0])
	}

	results, err := repo.ListResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if diff := cmp.Diff([]int{1, 3}, results[0].Pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
	if results[1].Success || results[1].ErrorMessage != "disk full" {
		t.Errorf("second result = %+v", results[1])
	}

	byOut, err := repo.FindByOutput(ctx, "/out/Acme/2024.pdf")
	if err != nil {
		t.Fatalf("FindByOutput: %v", err)
	}
	if len(byOut) != 1 || byOut[0].Duration != 150*time.Millisecond {
		t.Errorf("FindByOutput = %+v", byOut)
	}
}
