// Package distribution plans reviewer assignments for the submissions of an
// event. Planning is pure: callers load the inputs and persist the plan.
package distribution

import (
	"sort"
)

// Settings bound a distribution run
type Settings struct {
	MaxPerReviewer int // active assignments a reviewer may hold before relaxed selection
	MinReviewers   int
	MaxReviewers   int
}

// Submission is the part of a submission the planner needs
type Submission struct {
	ID       int64
	AuthorID int64
}

// Input is a snapshot of the event taken before planning
type Input struct {
	Submissions []Submission
	Reviewers   []int64
	// Existing maps a submission id to the reviewers already assigned to it.
	Existing map[int64][]int64
	// Loads maps a reviewer id to their incomplete assignments.
	Loads map[int64]int
}

// Pick is one assignment the plan creates
type Pick struct {
	SubmissionID int64 `json:"submission_id"`
	ReviewerID   int64 `json:"reviewer_id"`
	Fallback     bool  `json:"fallback"`
}

// Outcome describes what happened to one submission
type Outcome struct {
	SubmissionID int64   `json:"submission_id"`
	Existing     int     `json:"existing"`
	Assigned     []int64 `json:"assigned,omitempty"`
	Fallback     []int64 `json:"fallback,omitempty"`
	Conflict     bool    `json:"author_in_pool,omitempty"`
	Failed       bool    `json:"failed,omitempty"`
}

// Plan is the result of a planning pass
type Plan struct {
	Picks            []Pick    `json:"-"`
	Outcomes         []Outcome `json:"outcomes"`
	TotalSubmissions int       `json:"total_submissions"`
	Conflicts        int       `json:"conflicts_detected"`
	Fallbacks        int       `json:"fallback_assignments"`
	Failures         int       `json:"failed_assignments"`
}

// Build assigns reviewers to submissions in ascending id order.
//
// Each submission is filled up to MaxReviewers with reviewers that are below
// MaxPerReviewer, least loaded first and ties broken by id. The author and
// reviewers already on the submission are never picked. When that leaves the
// submission below MinReviewers the load cap is ignored to reach the minimum,
// and such picks are fallbacks. A submission that still cannot reach the
// minimum is a failure. Loads grow as the plan is built, so later submissions
// see earlier picks, and a rerun with the same data picks nothing new.
func Build(in Input, s Settings) Plan {
	target := s.MaxReviewers
	if target < s.MinReviewers {
		target = s.MinReviewers
	}

	subs := append([]Submission(nil), in.Submissions...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	reviewers := dedupe(in.Reviewers)
	loads := make(map[int64]int, len(reviewers))
	for _, r := range reviewers {
		loads[r] = in.Loads[r]
	}

	plan := Plan{TotalSubmissions: len(subs)}
	for _, sub := range subs {
		assigned := make(map[int64]bool)
		for _, r := range in.Existing[sub.ID] {
			assigned[r] = true
		}
		out := Outcome{SubmissionID: sub.ID, Existing: len(assigned)}

		need := target - len(assigned)
		if need <= 0 {
			plan.Outcomes = append(plan.Outcomes, out)
			continue
		}

		var candidates []int64
		for _, r := range reviewers {
			if assigned[r] {
				continue
			}
			if r == sub.AuthorID {
				out.Conflict = true
				continue
			}
			candidates = append(candidates, r)
		}
		if out.Conflict {
			plan.Conflicts++
		}
		byLoad(candidates, loads)

		for _, r := range candidates {
			if len(out.Assigned) == need {
				break
			}
			if loads[r] >= s.MaxPerReviewer {
				continue
			}
			out.Assigned = append(out.Assigned, r)
			assigned[r] = true
		}

		for _, r := range candidates {
			if len(assigned) >= s.MinReviewers {
				break
			}
			if assigned[r] {
				continue
			}
			out.Fallback = append(out.Fallback, r)
			assigned[r] = true
		}

		if len(assigned) < s.MinReviewers {
			out.Failed = true
			plan.Failures++
		}

		for _, r := range out.Assigned {
			loads[r]++
			plan.Picks = append(plan.Picks, Pick{SubmissionID: sub.ID, ReviewerID: r})
		}
		for _, r := range out.Fallback {
			loads[r]++
			plan.Fallbacks++
			plan.Picks = append(plan.Picks, Pick{SubmissionID: sub.ID, ReviewerID: r, Fallback: true})
		}
		plan.Outcomes = append(plan.Outcomes, out)
	}

	return plan
}

// PickReplacement returns the least loaded reviewer that is neither the
// author nor in exclude. Reviewers below maxPerReviewer are preferred.
func PickReplacement(reviewers []int64, loads map[int64]int, authorID int64, exclude map[int64]bool, maxPerReviewer int) (int64, bool) {
	var candidates []int64
	for _, r := range dedupe(reviewers) {
		if r != authorID && !exclude[r] {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	byLoad(candidates, loads)
	for _, r := range candidates {
		if loads[r] < maxPerReviewer {
			return r, true
		}
	}
	return candidates[0], true
}

func byLoad(ids []int64, loads map[int64]int) {
	sort.SliceStable(ids, func(i, j int) bool {
		if loads[ids[i]] != loads[ids[j]] {
			return loads[ids[i]] < loads[ids[j]]
		}
		return ids[i] < ids[j]
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
