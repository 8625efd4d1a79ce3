package repository

import (
	"context"
	"strings"
	"testing"
)

func TestClaimQueryIsAtomicConditionalInsert(t *testing.T) {
	query := strings.ToLower(claimQuery)

	requiredFragments := []string{
		"insert into transactions",
		"'pending'",
		"on conflict (reference) do nothing",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected claim query fragment %q to be present", fragment)
		}
	}
}

func TestCompleteQueryOnlyTouchesPendingRows(t *testing.T) {
	query := strings.ToLower(completeQuery)

	if !strings.Contains(query, "where reference = $1 and status = 'pending'") {
		t.Fatal("complete must only finalize a pending row")
	}
	if !strings.Contains(query, "completed_at = now()") {
		t.Fatal("complete must stamp completed_at")
	}
}

func TestExistsQueryIsKeyedByReference(t *testing.T) {
	if !strings.Contains(strings.ToLower(existsQuery), "where reference = $1") {
		t.Fatal("exists must be a point lookup on reference")
	}
}

func TestCompleteRejectsNonFinalStatus(t *testing.T) {
	s := &connSession{}
	if err := s.Complete(context.Background(), "1", StatusPending, nil); err == nil {
		t.Fatal("expected pending to be rejected as a final status")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := &connSession{}
	s.Release()
	s.Release()
}
