package cache

import (
	"errors"
	"testing"
	"time"
)

func TestGetOrComputeStringCachesWithinTTL(t *testing.T) {
	c := New()
	calls := 0
	f := func() (string, error) {
		calls++
		return "main", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrComputeString("repo:default-branch", time.Minute, f)
		if err != nil || v != "main" {
			t.Fatalf("GetOrComputeString = (%q, %v)", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("f called %d times, want 1", calls)
	}
}

func TestGetOrComputeStringRecomputesAfterTTL(t *testing.T) {
	c := New()
	real := now
	defer func() { now = real }()
	clock := time.Unix(1000, 0)
	now = func() time.Time { return clock }

	calls := 0
	f := func() (string, error) { calls++; return "main", nil }

	c.GetOrComputeString("k", time.Second, f)
	clock = clock.Add(2 * time.Second)
	c.GetOrComputeString("k", time.Second, f)

	if calls != 2 {
		t.Errorf("f called %d times after TTL elapsed, want 2", calls)
	}
}

func TestGetOrComputeCountPropagatesErrorWithoutCaching(t *testing.T) {
	c := New()
	wantErr := errors.New("boom")
	_, err := c.GetOrComputeCount("k", time.Minute, func() (*uint32, error) { return nil, wantErr })
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	calls := 0
	c.GetOrComputeCount("k", time.Minute, func() (*uint32, error) {
		calls++
		v := uint32(5)
		return &v, nil
	})
	if calls != 1 {
		t.Errorf("expected the failed call not to be cached, f called %d times", calls)
	}
}

func TestInvalidatePrefixDropsMatchingEntriesOnly(t *testing.T) {
	c := New()
	c.GetOrComputeString("/repo/a:branch", time.Minute, func() (string, error) { return "x", nil })
	c.GetOrComputeString("/repo/b:branch", time.Minute, func() (string, error) { return "y", nil })

	c.InvalidatePrefix("/repo/a")

	callsA, callsB := 0, 0
	c.GetOrComputeString("/repo/a:branch", time.Minute, func() (string, error) { callsA++; return "x2", nil })
	c.GetOrComputeString("/repo/b:branch", time.Minute, func() (string, error) { callsB++; return "y2", nil })

	if callsA != 1 {
		t.Errorf("expected invalidated entry to recompute, callsA = %d", callsA)
	}
	if callsB != 0 {
		t.Errorf("expected untouched entry to stay cached, callsB = %d", callsB)
	}
}

func TestGetOrComputePairCachesWithinTTL(t *testing.T) {
	c := New()
	calls := 0
	f := func() ([2]uint32, error) { calls++; return [2]uint32{3, 7}, nil }
	v, err := c.GetOrComputePair("k", time.Minute, f)
	if err != nil || v != [2]uint32{3, 7} {
		t.Fatalf("GetOrComputePair = (%v, %v)", v, err)
	}
	c.GetOrComputePair("k", time.Minute, f)
	if calls != 1 {
		t.Errorf("f called %d times, want 1", calls)
	}
}
