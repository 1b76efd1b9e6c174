package stubs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookrec/internal/models"
	"bookrec/internal/storage"
)

func TestMockDB_ListUsersPaginates(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	for _, id := range []string{"u3", "u1", "u2", "u5", "u4"} {
		if err := db.UpsertUser(ctx, models.UserProfile{UserID: id}); err != nil {
			t.Fatalf("Failed to upsert user: %v", err)
		}
	}

	page, err := db.ListUsers(ctx, "", 2)
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(page) != 2 || page[0].UserID != "u1" || page[1].UserID != "u2" {
		t.Fatalf("Unexpected first page: %+v", page)
	}

	page, err = db.ListUsers(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(page) != 3 || page[0].UserID != "u3" || page[2].UserID != "u5" {
		t.Fatalf("Unexpected second page: %+v", page)
	}
}

func TestMockDB_PutUserBookUpserts(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	entry := models.UserBookEntry{UserID: "u1", BookID: "b1", Status: models.StatusReading, DateAdded: time.Now()}
	if err := db.PutUserBook(ctx, entry); err != nil {
		t.Fatalf("Failed to put entry: %v", err)
	}
	entry.Status = models.StatusCompleted
	entry.Rating = 8
	if err := db.PutUserBook(ctx, entry); err != nil {
		t.Fatalf("Failed to put entry: %v", err)
	}

	books, err := db.GetCollection(ctx, "u1")
	if err != nil {
		t.Fatalf("Failed to get collection: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("Expected 1 entry per (user, book), got %d", len(books))
	}
	if books[0].Status != models.StatusCompleted || books[0].Rating != 8 {
		t.Errorf("Expected updated entry, got %+v", books[0])
	}

	entry, err := db.GetUserBook(ctx, "u1", books[0].BookID)
	if err != nil {
		t.Fatalf("Failed to get user book: %v", err)
	}
	if entry != books[0] {
		t.Errorf("Expected %+v, got %+v", books[0], entry)
	}
}

func TestMockDB_GetMissingRecords(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if _, err := db.GetBookPopularity(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for popularity, got %v", err)
	}
	if _, err := db.GetUserAchievement(ctx, "u1", "first_book"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for achievement, got %v", err)
	}
	if _, err := db.GetUserProgress(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for progress, got %v", err)
	}
	if _, err := db.GetUserBook(ctx, "u1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for user book, got %v", err)
	}

	stats, err := db.GetSocialStats(ctx, "u1")
	if err != nil {
		t.Fatalf("Failed to get social stats: %v", err)
	}
	if stats != (models.SocialStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestMockDB_PopularityQueries(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()
	now := time.Now()

	records := []models.BookPopularity{
		{BookID: "a", Genre: "Fiction", TotalUsers: 5, TrendingScore: 40, LastUpdated: now},
		{BookID: "b", Genre: "Fiction", TotalUsers: 9, TrendingScore: 20, LastUpdated: now.AddDate(0, -2, 0)},
		{BookID: "c", Genre: "History", TotalUsers: 50, TrendingScore: 60, LastUpdated: now},
	}
	for _, r := range records {
		if err := db.PutBookPopularity(ctx, r); err != nil {
			t.Fatalf("Failed to put popularity: %v", err)
		}
	}

	trending, err := db.ListTrending(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list trending: %v", err)
	}
	if len(trending) != 2 || trending[0].BookID != "c" || trending[1].BookID != "a" {
		t.Errorf("Unexpected trending order: %+v", trending)
	}

	fiction, err := db.ListPopularByGenre(ctx, "Fiction", 10)
	if err != nil {
		t.Fatalf("Failed to list by genre: %v", err)
	}
	if len(fiction) != 2 || fiction[0].BookID != "b" || fiction[1].BookID != "a" {
		t.Errorf("Unexpected genre order: %+v", fiction)
	}

	stale, err := db.ListPopularityUpdatedBefore(ctx, now.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("Failed to list stale records: %v", err)
	}
	if len(stale) != 1 || stale[0].BookID != "b" {
		t.Errorf("Unexpected stale records: %+v", stale)
	}
}

func TestMockDB_RunInTxSerializes(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.RunInTx(ctx, func(ctx context.Context, tx storage.Storage) error {
				record, err := tx.GetBookPopularity(ctx, "hot")
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
				record.BookID = "hot"
				record.TotalUsers++
				return tx.PutBookPopularity(ctx, record)
			})
			if err != nil {
				t.Errorf("RunInTx failed: %v", err)
			}
		}()
	}
	wg.Wait()

	record, err := db.GetBookPopularity(ctx, "hot")
	if err != nil {
		t.Fatalf("Failed to get popularity: %v", err)
	}
	if record.TotalUsers != workers {
		t.Errorf("Expected %d increments, got %d", workers, record.TotalUsers)
	}
}

func TestMockDB_FailCollection(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	db.FailCollection("u1", errors.New("boom"))
	if _, err := db.GetCollection(ctx, "u1"); err == nil {
		t.Fatal("Expected injected failure")
	}

	db.FailCollection("u1", nil)
	if _, err := db.GetCollection(ctx, "u1"); err != nil {
		t.Fatalf("Expected failure to be cleared, got %v", err)
	}
}
