package sqlite

import (
	"context"
	"reflect"
	"testing"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestViolationsArithmetic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	const userID = int64(100)

	count, err := client.GetViolations(ctx, userID)
	if err != nil {
		t.Fatalf("get violations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 for absent record, got %d", count)
	}

	// Decrement on an absent record must be a no-op.
	if err := client.DecrementViolations(ctx, userID); err != nil {
		t.Fatalf("decrement absent: %v", err)
	}
	if count, _ = client.GetViolations(ctx, userID); count != 0 {
		t.Fatalf("expected 0 after decrement of absent record, got %d", count)
	}

	for i := 0; i < 3; i++ {
		if err := client.IncrementViolations(ctx, userID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if count, _ = client.GetViolations(ctx, userID); count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}

	for i := 0; i < 5; i++ {
		if err := client.DecrementViolations(ctx, userID); err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}
	if count, _ = client.GetViolations(ctx, userID); count != 0 {
		t.Fatalf("expected floor at 0, got %d", count)
	}

	if err := client.IncrementViolations(ctx, userID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := client.ResetViolations(ctx, userID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if count, _ = client.GetViolations(ctx, userID); count != 0 {
		t.Fatalf("expected 0 after reset, got %d", count)
	}
}

func TestBannedWordsOrderAndDedup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	for _, word := range []string{"zulu", "Alpha", "mike"} {
		added, err := client.AddBannedWord(ctx, word)
		if err != nil {
			t.Fatalf("add word %q: %v", word, err)
		}
		if !added {
			t.Fatalf("expected word %q to be added", word)
		}
	}

	added, err := client.AddBannedWord(ctx, "ALPHA")
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if added {
		t.Fatalf("expected duplicate to be rejected")
	}

	if _, err := client.AddBannedWord(ctx, "  "); err == nil {
		t.Fatalf("expected error for blank word")
	}

	words, err := client.GetBannedWords(ctx)
	if err != nil {
		t.Fatalf("get words: %v", err)
	}
	got := make([]string, 0, len(words))
	for _, word := range words {
		got = append(got, word.Word)
	}
	expected := []string{"zulu", "alpha", "mike"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected word list: got %v want %v", got, expected)
	}
}
