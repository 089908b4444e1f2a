// Package enrollment contains the enrollment aggregate of the Learnhub core.
//
// An Enrollment binds one student to one course and owns the student's
// per-lesson progress records. The package defines:
//
//   - Entities: Enrollment, LessonProgress
//   - Value objects: Status, ProgressReport
//   - The progress calculator that derives the course completion percentage
//   - Repository contracts: Repository, ProgressStore, Tx, Store
//
// # Lifecycle
//
// Enrollments start active. Progress reports move them to completed the first
// time the recomputed percentage reaches exactly 100.00. Administrators can
// suspend, reactivate or drop an enrollment:
//
//	active    -> completed (progress), suspended, dropped
//	suspended -> active, dropped
//	completed -> (terminal for status changes; certificates may be issued)
//	dropped   -> (terminal)
//
// Enrollments are never deleted.
//
// # Concurrency
//
// Every write to an enrollment happens inside Store.WithinTx after the row was
// loaded with Repository.GetForUpdate. Implementations serialize writers of the
// same enrollment and never block writers of different enrollments. Update
// additionally checks the row version and reports ErrConcurrencyConflict when
// the row changed underneath.
package enrollment
