package faspay

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

var merchantOrderIDPattern = regexp.MustCompile(`^OASIS-[A-Z]+-\d{13}-[0-9A-Z]{6}$`)

func TestNewMerchantOrderIDFormat(t *testing.T) {
	id := NewMerchantOrderID("starter")
	if !merchantOrderIDPattern.MatchString(id) {
		t.Errorf("unexpected order id format: %s", id)
	}

	parts := strings.Split(id, "-")
	if parts[1] != "STARTER" {
		t.Errorf("plan segment should be upper-cased, got %s", parts[1])
	}

	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		t.Fatalf("timestamp segment not numeric: %s", parts[2])
	}
	if d := time.Since(time.UnixMilli(millis)); d < 0 || d > time.Minute {
		t.Errorf("timestamp segment not close to now: %s", parts[2])
	}
}

func TestNewMerchantOrderIDNoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 100000)
	for i := 0; i < 100000; i++ {
		id := NewMerchantOrderID("professional")
		if _, ok := seen[id]; ok {
			t.Fatalf("collision after %d ids: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewExternalIDFormat(t *testing.T) {
	id := NewExternalID()
	if len(id) != 24 {
		t.Fatalf("expected 24 characters (14 date + 10 random), got %d: %s", len(id), id)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			t.Fatalf("external id must be all digits: %s", id)
		}
	}
	if _, err := time.Parse("20060102150405", id[:14]); err != nil {
		t.Errorf("date prefix not parseable: %s", id[:14])
	}
}

func TestNewExternalIDVaries(t *testing.T) {
	a := NewExternalID()
	b := NewExternalID()
	if a == b {
		t.Error("two external ids in a row should not match")
	}
}
