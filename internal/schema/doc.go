// Package schema defines the entities of a ToDo.md task document.
//
// # Overview
//
// A document is an ordered sequence of daily sections. Each section is keyed
// by an ISO date and holds four task lists (Priorities, Schedule, Follow-ups,
// Completed), free-text notes and blockers:
//
//	# 2025-01-10 (Local: Australia/Sydney)
//
//	## 📌 Priorities (Top 3 max)
//	- [ ] Finish report #DataTables Due: 2025-01-09 !P1
//
//	## ✅ Completed
//	- [x] Email client @Jim
//
// # Invariants
//
//   - Task.Content is never empty after trimming and never contains metadata
//     tokens; those live in Project, Assignee, DueDate and Priority.
//   - Task.CompletedAt is set if and only if Status is StatusCompleted.
//   - A task lives in exactly one list of one section. Moving between lists is
//     a relocation, never a copy.
//   - Project tags start with '#' and are unique per document.
//
// The Priorities list has a soft cap of three entries. The model does not
// enforce it; callers that care should check len(Priorities).
package schema
