//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"review_toolkit/internal/domain"
	mysqlrepo "review_toolkit/internal/storage/mysql"
)

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	path := filepath.Join("..", "..", "..", "migrations", "001_comments.sql")
	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if _, err := db.Exec(string(sqlBytes)); err != nil {
		t.Fatalf("exec migrations: %v", err)
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=wordpress",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/wordpress?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC", hostPort)

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func sampleBatch() []domain.Review {
	d := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	return []domain.Review{
		{Author: "Ana", Rating: 5, Body: "great shop", Date: d, Verified: true, SourceID: "s-1"},
		{Author: domain.DefaultAuthor, Rating: 2, Body: "meh", Date: d.Add(time.Minute), Verified: false, SourceID: "s-2"},
	}
}

func TestRepo_MySQL_InsertIdempotentAndAtomic(t *testing.T) {
	db := startMySQL(t)
	repo, err := mysqlrepo.New(db, "wp_")
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	ctx := context.Background()
	opts := domain.InsertOptions{PostID: 8348}

	// Dry-run plan before anything exists.
	plan, err := repo.PlanInsert(ctx, sampleBatch(), opts)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Inserted != 2 || plan.Duplicates != 0 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if countRows(t, db, "wp_comments") != 0 {
		t.Fatal("plan must not write rows")
	}

	// Real insert.
	sum, err := repo.InsertReviews(ctx, sampleBatch(), opts)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sum.Inserted != 2 || sum.Duplicates != 0 || sum.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if got := countRows(t, db, "wp_comments"); got != 2 {
		t.Fatalf("expected 2 parent rows, got %d", got)
	}
	if got := countRows(t, db, "wp_commentmeta"); got != 6 {
		t.Fatalf("expected 6 meta rows, got %d", got)
	}

	// Idempotent re-run: zero new parent rows.
	again, err := repo.InsertReviews(ctx, sampleBatch(), opts)
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if again.Inserted != 0 || again.Duplicates != 2 {
		t.Fatalf("expected all duplicates, got %+v", again)
	}
	if got := countRows(t, db, "wp_comments"); got != 2 {
		t.Fatalf("re-run grew parent table to %d rows", got)
	}

	// Plan after import matches the re-run outcome.
	plan2, err := repo.PlanInsert(ctx, sampleBatch(), opts)
	if err != nil {
		t.Fatalf("plan2: %v", err)
	}
	if plan2.Inserted != 0 || plan2.Duplicates != 2 {
		t.Fatalf("unexpected plan after import: %+v", plan2)
	}
}

func TestRepo_MySQL_MinRatingAndTargetRoundTrip(t *testing.T) {
	db := startMySQL(t)
	repo, err := mysqlrepo.New(db, "wp5_")
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	// Reuse the schema under a second prefix.
	for _, stmt := range []string{
		"CREATE TABLE wp5_comments LIKE wp_comments",
		"CREATE TABLE wp5_commentmeta LIKE wp_commentmeta",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	ctx := context.Background()
	opts := domain.InsertOptions{PostID: 99, MinRating: 3}

	sum, err := repo.InsertReviews(ctx, sampleBatch(), opts)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sum.Inserted != 1 {
		t.Fatalf("min-rating filter: expected 1 insert, got %+v", sum)
	}

	target := mysqlrepo.NewReviewsTarget(repo, domain.InsertOptions{PostID: 99})
	recs, err := target.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 1 || recs[0].Author != "Ana" || recs[0].Rating != 5 || !recs[0].Verified {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].SourceID != "s-1" {
		t.Fatalf("expected source id s-1, got %q", recs[0].SourceID)
	}

	recs[0].Author = "Renamed"
	recs[0].Body = "great store"
	if err := target.Save(ctx, recs); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := target.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back[0].Author != "Renamed" || back[0].Body != "great store" {
		t.Fatalf("update not persisted: %+v", back)
	}
}
