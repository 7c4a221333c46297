package job

import (
	"errors"
	"testing"
	"time"

	. "github.com/franela/goblin"
)

func TestCheckTransition(t *testing.T) {
	g := Goblin(t)

	running := &Job{JobID: "a", Status: StatusRunning}
	completed := &Job{JobID: "a", Status: StatusCompleted}
	failed := &Job{JobID: "a", Status: StatusFailed}

	g.Describe("CheckTransition", func() {
		g.It("Should allow any valid status on an absent record", func() {
			for _, s := range []Status{StatusRunning, StatusCompleted, StatusFailed} {
				g.Assert(CheckTransition("a", nil, s)).IsNil()
			}
		})

		g.It("Should allow Running to move to a terminal status", func() {
			g.Assert(CheckTransition("a", running, StatusCompleted)).IsNil()
			g.Assert(CheckTransition("a", running, StatusFailed)).IsNil()
		})

		g.It("Should refuse Running over Running", func() {
			err := CheckTransition("a", running, StatusRunning)
			g.Assert(errors.Is(err, ErrInvalidTransition)).IsTrue()
		})

		g.It("Should refuse any write over a terminal record", func() {
			for _, cur := range []*Job{completed, failed} {
				for _, s := range []Status{StatusRunning, StatusCompleted, StatusFailed} {
					err := CheckTransition("a", cur, s)
					g.Assert(errors.Is(err, ErrAlreadyFinalized)).IsTrue()
				}
			}
		})

		g.It("Should refuse unknown statuses", func() {
			err := CheckTransition("a", nil, Status("Paused"))
			g.Assert(errors.Is(err, ErrInvalidTransition)).IsTrue()
		})
	})
}

func TestBuild(t *testing.T) {
	g := Goblin(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Minute)

	g.Describe("build", func() {
		g.It("Should keep the creation time of the existing record", func() {
			j := build("a", &Job{Status: StatusRunning, CreatedAt: created}, StatusFailed, Payload{Error: "boom"}, now)
			g.Assert(j.CreatedAt).Equal(created)
			g.Assert(j.UpdatedAt).Equal(now)
			g.Assert(j.Error).Equal("boom")
			g.Assert(j.Results == nil).IsTrue()
		})

		g.It("Should attach an empty result map on completion without results", func() {
			j := build("a", nil, StatusCompleted, Payload{}, now)
			g.Assert(j.Results != nil).IsTrue()
			g.Assert(j.Results.Len()).Equal(0)
		})

		g.It("Should drop payload fields that do not belong to the status", func() {
			j := build("a", nil, StatusRunning, Payload{Error: "ignored", Results: NewResultMap()}, now)
			g.Assert(j.Error).Equal("")
			g.Assert(j.Results == nil).IsTrue()
		})
	})
}

func TestEncodeDecodeDataKeepsProductOrder(t *testing.T) {
	results := NewResultMap()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		results.Set(name, ProductResult{InputURLs: []string{"in"}, OutputURLs: []string{"out"}})
	}
	src := &Job{JobID: "a", Status: StatusCompleted, Results: results}

	data, err := encodeData(src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	dst := &Job{JobID: "a", Status: StatusCompleted}
	if err := decodeData(dst, data); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var got []string
	for pair := dst.Results.Oldest(); pair != nil; pair = pair.Next() {
		got = append(got, pair.Key)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestEncodeDecodeDataCarriesFailureReason(t *testing.T) {
	data, err := encodeData(&Job{Status: StatusFailed, Error: "CSV data is empty"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"error":"CSV data is empty"}` {
		t.Errorf("Unexpected data column: %s", data)
	}

	dst := &Job{Status: StatusFailed}
	if err := decodeData(dst, data); err != nil {
		t.Fatal(err)
	}
	if dst.Error != "CSV data is empty" {
		t.Errorf("Expected error reason to survive, got %q", dst.Error)
	}
}
