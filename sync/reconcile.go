package sync

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// emailPattern is a deliberately simple local@domain.tld shape check;
// anything stricter belongs to the mail provider
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// StudentDocument is the in-memory view of one persisted per-email
// aggregate. RecordID is empty until the document has been stored.
type StudentDocument struct {
	RecordID string
	Email    string
	Info     StudentInfo
	Courses  []CourseRecord
}

// StudentWrite is one queued create-or-merge for the batch commit
type StudentWrite struct {
	Create bool
	Doc    *StudentDocument
}

// StudentStore is the document-store surface the engine reconciles against
type StudentStore interface {
	// FindByEmail looks up a student document by normalized email,
	// returning (nil, nil) when none exists
	FindByEmail(ctx context.Context, email string) (*StudentDocument, error)
	// CommitBatch applies all queued writes, chunking above the store's
	// batch bound. Failure is fatal for the run.
	CommitBatch(ctx context.Context, writes []StudentWrite) error
}

// Provisioner creates login credentials for newly-seen students
type Provisioner interface {
	// EnsureUser is idempotent: an already-existing user is success
	EnsureUser(ctx context.Context, email, password, displayName string) error
}

// Notifier dispatches the welcome notification. It reports success as a
// boolean and never propagates an error past its own boundary.
type Notifier interface {
	SendWelcome(info StudentInfo, courseNames []string) bool
}

// ReconcileStats tracks the outcome of one reconciliation pass
type ReconcileStats struct {
	StudentsCreated   int `json:"students_created"`
	CoursesCreated    int `json:"courses_created"`
	CoursesAppended   int `json:"courses_appended"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	InvalidDropped    int `json:"invalid_dropped"`
	ProvisionErrors   int `json:"provision_errors,omitempty"`
}

// Engine reconciles course records into the per-email student store.
// It owns the merge transaction for every touched StudentDocument during a
// run; callers serialize runs (see Runner).
type Engine struct {
	store StudentStore
	prov  Provisioner
	notif Notifier
	Stats ReconcileStats
}

// NewEngine creates a reconciliation engine with injected collaborators
func NewEngine(store StudentStore, prov Provisioner, notif Notifier) *Engine {
	return &Engine{
		store: store,
		prov:  prov,
		notif: notif,
	}
}

// Reconcile merges course records into the student store and returns the
// count of newly-persisted course records. Records without a valid email are
// dropped with a warning. Existing documents only ever gain courses whose
// identity key is not already present; nothing is overwritten or deleted.
// Store lookup or commit failures are fatal and propagated; the returned
// count reflects what was computed before the failure.
func (e *Engine) Reconcile(ctx context.Context, records []CourseRecord) (int, error) {
	e.Stats = ReconcileStats{}

	groups := e.groupByEmail(records)

	var writes []StudentWrite
	persisted := 0

	for email, group := range groups {
		doc, err := e.store.FindByEmail(ctx, email)
		if err != nil {
			return persisted, fmt.Errorf("looking up student %s: %w", email, err)
		}

		if doc != nil {
			added := e.mergeExisting(doc, group)
			if added > 0 {
				writes = append(writes, StudentWrite{Doc: doc})
				persisted += added
			}
			continue
		}

		newDoc := e.createDocument(ctx, email, group)
		writes = append(writes, StudentWrite{Create: true, Doc: newDoc})
		persisted += len(newDoc.Courses)
	}

	if len(writes) > 0 {
		if err := e.store.CommitBatch(ctx, writes); err != nil {
			return persisted, fmt.Errorf("committing student batch: %w", err)
		}
	}

	slog.Info("Reconciliation complete",
		"students_created", e.Stats.StudentsCreated,
		"courses_created", e.Stats.CoursesCreated,
		"courses_appended", e.Stats.CoursesAppended,
		"duplicates_skipped", e.Stats.DuplicatesSkipped,
		"invalid_dropped", e.Stats.InvalidDropped)

	return persisted, nil
}

// groupByEmail validates and groups incoming records by normalized email.
// Invalid or missing emails are dropped with a warning and excluded from all
// further steps; they are a skip, never a fatal error.
func (e *Engine) groupByEmail(records []CourseRecord) map[string][]CourseRecord {
	groups := make(map[string][]CourseRecord)

	for _, record := range records {
		email := NormalizeEmail(record.Student.Email)
		if !emailPattern.MatchString(email) {
			slog.Warn("Dropping course record with invalid email",
				"email", record.Student.Email,
				"course", record.CourseName,
				"order", record.OrderNumber)
			e.Stats.InvalidDropped++
			continue
		}
		groups[email] = append(groups[email], record)
	}

	return groups
}

// mergeExisting appends the group's non-duplicate courses to an existing
// document and returns how many were added. Duplicate detection uses the
// canonical identity key only.
func (e *Engine) mergeExisting(doc *StudentDocument, group []CourseRecord) int {
	existing := make(map[string]bool, len(doc.Courses))
	for _, course := range doc.Courses {
		existing[course.IdentityKey()] = true
	}

	added := 0
	for _, record := range group {
		key := record.IdentityKey()
		if existing[key] {
			e.Stats.DuplicatesSkipped++
			continue
		}
		existing[key] = true
		doc.Courses = append(doc.Courses, record.StripPassword())
		added++
	}

	e.Stats.CoursesAppended += added
	return added
}

// createDocument builds a new student document for a first-seen email,
// requests idempotent credential provisioning, and dispatches the welcome
// notification without blocking the write batch
func (e *Engine) createDocument(ctx context.Context, email string, group []CourseRecord) *StudentDocument {
	first := group[0]

	info := first.Student
	info.Email = email

	doc := &StudentDocument{
		Email: email,
		Info:  stripInfoPassword(info),
	}

	seen := make(map[string]bool, len(group))
	var courseNames []string
	for _, record := range group {
		key := record.IdentityKey()
		if seen[key] {
			e.Stats.DuplicatesSkipped++
			continue
		}
		seen[key] = true
		doc.Courses = append(doc.Courses, record.StripPassword())
		courseNames = append(courseNames, record.CourseName)
	}

	e.Stats.StudentsCreated++
	e.Stats.CoursesCreated += len(doc.Courses)

	// Provisioning conflicts and failures are side effects: logged, never
	// fatal to the run
	if err := e.prov.EnsureUser(ctx, email, info.Password, info.FullName()); err != nil {
		slog.Warn("Credential provisioning failed", "email", email, "error", err)
		e.Stats.ProvisionErrors++
	}

	// Fire-and-forget: the welcome email carries the original
	// password-bearing info and never holds up or rolls back the commit
	go func(original StudentInfo, names []string) {
		if !e.notif.SendWelcome(original, names) {
			slog.Warn("Welcome notification failed", "email", original.Email)
		}
	}(info, courseNames)

	return doc
}

func stripInfoPassword(info StudentInfo) StudentInfo {
	info.Password = ""
	return info
}
