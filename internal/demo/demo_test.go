package demo

import (
	"testing"
	"time"

	"github.com/large-farva/passrelay/internal/predict"
)

func TestQueryIsDeterministic(t *testing.T) {
	q := New(20 * time.Minute)
	sats := Catalog(nil, time.Now())
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, sat := range sats {
		a, err := q.NextPass(sat, predict.Observer{}, at)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := q.NextPass(sat, predict.Observer{}, at.Add(-time.Second))
		if a.Rise.Before(at) {
			t.Errorf("%s: rise %v before query time", sat.Name, a.Rise)
		}
		if !a.Rise.Before(a.Peak) || !a.Peak.Before(a.Set) {
			t.Errorf("%s: ordering violated %+v", sat.Name, a)
		}
		if b.Rise.Equal(a.Rise) && b.MaxElevation != a.MaxElevation {
			t.Errorf("%s: same slot produced different geometry", sat.Name)
		}
	}
}

func TestQueryAdvances(t *testing.T) {
	q := New(15 * time.Minute)
	sat := Catalog(nil, time.Now())[0]
	cursor := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var last time.Time
	for range 10 {
		ev, err := q.NextPass(sat, predict.Observer{}, cursor)
		if err != nil {
			t.Fatal(err)
		}
		if !ev.Rise.After(last) {
			t.Fatalf("rise %v did not advance past %v", ev.Rise, last)
		}
		last = ev.Rise
		cursor = ev.Set.Add(time.Minute)
	}
}
