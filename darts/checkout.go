package darts

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"darts-lite/dart"
)

// MaxCheckout is the highest score that can be finished with three darts.
const MaxCheckout = 170

const maxSuggestions = 3

// preferred finishing doubles, best first
var doublePreference = []int{20, 16, 18, 12, 10, 8, 14, 19, 17, 15, 13, 11, 9, 6, 4, 2, 7, 5, 3, 1, dart.Bull}

var (
	checkoutOnce  sync.Once
	checkoutTable [2][MaxCheckout + 1][]string
)

// CheckoutAdvice suggests up to three ways to finish from remaining. Fewer
// darts come first. For a score that has no checkout a setup hint is returned
// instead; 1 under double-out and scores above MaxCheckout get nothing.
func CheckoutAdvice(remaining int, doubleOut bool) []string {
	if remaining <= 0 || remaining > MaxCheckout {
		return nil
	}
	if doubleOut && remaining == 1 {
		return nil
	}
	checkoutOnce.Do(buildCheckoutTable)

	mode := 0
	if doubleOut {
		mode = 1
	}
	if routes := checkoutTable[mode][remaining]; len(routes) > 0 {
		return append([]string(nil), routes...)
	}
	for leave := remaining - 1; leave > 1; leave-- {
		if len(checkoutTable[mode][leave]) > 0 {
			return []string{fmt.Sprintf("Score %d to leave %d", remaining-leave, leave)}
		}
	}
	return nil
}

type route struct {
	darts []dart.Segment
	rank  []int
}

func buildCheckoutTable() {
	setup := boardSegments()
	for mode, doubleOut := range []bool{false, true} {
		finishers := setup
		if doubleOut {
			finishers = nil
			for _, s := range setup {
				if s.IsDouble() {
					finishers = append(finishers, s)
				}
			}
		}

		routes := make(map[int][]route)
		add := func(r route) {
			total := 0
			for _, d := range r.darts {
				total += d.Score()
			}
			if total > MaxCheckout {
				return
			}
			r.rank = routeRank(r.darts)
			routes[total] = append(routes[total], r)
		}
		for _, f := range finishers {
			add(route{darts: []dart.Segment{f}})
			for i, a := range setup {
				add(route{darts: []dart.Segment{a, f}})
				// the two setup darts are unordered; keep a >= b only
				for _, b := range setup[i:] {
					add(route{darts: []dart.Segment{a, b, f}})
				}
			}
		}

		for score, rs := range routes {
			sort.SliceStable(rs, func(i, j int) bool { return lessRank(rs[i].rank, rs[j].rank) })
			seen := make(map[string]struct{})
			for _, r := range rs {
				key := formatRoute(r.darts)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				checkoutTable[mode][score] = append(checkoutTable[mode][score], key)
				if len(checkoutTable[mode][score]) == maxSuggestions {
					break
				}
			}
		}
	}
}

// boardSegments lists every scoring segment, highest score first.
func boardSegments() []dart.Segment {
	var out []dart.Segment
	for base := 1; base <= 20; base++ {
		for _, m := range []dart.Multiplier{dart.Single, dart.Double, dart.Triple} {
			out = append(out, dart.New(base, m))
		}
	}
	out = append(out, dart.New(dart.Bull, dart.Single), dart.New(dart.Bull, dart.Double))
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].Multiplier > out[j].Multiplier
	})
	return out
}

func routeRank(darts []dart.Segment) []int {
	last := darts[len(darts)-1]
	rank := []int{len(darts), finishPreference(last)}
	for _, d := range darts[:len(darts)-1] {
		// trebles first, then the bigger dart
		rank = append(rank, -int(d.Multiplier), -d.Score())
	}
	return rank
}

func finishPreference(s dart.Segment) int {
	if s.IsDouble() {
		for i, b := range doublePreference {
			if b == s.Base {
				return i
			}
		}
	}
	return len(doublePreference) + 60 - s.Score()
}

func lessRank(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func formatRoute(darts []dart.Segment) string {
	parts := make([]string, len(darts))
	for i, d := range darts {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
