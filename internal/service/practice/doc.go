// Package practice composes bounded practice sessions from a vocabulary level
// and drives a learner through them one item at a time.
//
// A session is selected once at start (new and due items, or an explicit
// list), then advanced by discrete learner actions. Learn mode walks each
// item through present, trace and test steps; review mode only tests.
// Every finished test routes the outcome through the srs scheduler and
// writes the new progress back through a ProgressRepository. A failed write
// never blocks the learner: the computed record is kept in the session,
// queued in PendingWrites and retried later.
//
// Sessions live only in memory, in a Registry owned by the Manager.
package practice
