package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// studentsCollection is the per-email aggregate collection
const studentsCollection = "students"

// maxBatchOps bounds how many writes go into a single transaction; larger
// batches are chunked
const maxBatchOps = 500

// pbStudentStore is the PocketBase-backed StudentStore
type pbStudentStore struct {
	app core.App
}

// NewStudentStore creates the PocketBase-backed student store
func NewStudentStore(app core.App) StudentStore {
	return &pbStudentStore{app: app}
}

// FindByEmail looks up a student document by normalized email. The primary
// path queries the email column; a legacy path checks the denormalized
// student_info.email JSON field, covering documents written before the email
// column existed.
func (s *pbStudentStore) FindByEmail(_ context.Context, email string) (*StudentDocument, error) {
	record, err := s.app.FindFirstRecordByFilter(
		studentsCollection,
		"email = {:email}",
		dbx.Params{"email": email},
	)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		record, err = s.app.FindFirstRecordByFilter(
			studentsCollection,
			"student_info.email = {:email}",
			dbx.Params{"email": email},
		)
		if err != nil && errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", studentsCollection, err)
	}

	return recordToDocument(record)
}

// recordToDocument decodes a students record into the engine's view
func recordToDocument(record *core.Record) (*StudentDocument, error) {
	doc := &StudentDocument{
		RecordID: record.Id,
		Email:    record.GetString("email"),
	}

	if err := record.UnmarshalJSONField("student_info", &doc.Info); err != nil {
		return nil, fmt.Errorf("decoding student_info for %s: %w", record.Id, err)
	}
	if err := record.UnmarshalJSONField("courses", &doc.Courses); err != nil {
		return nil, fmt.Errorf("decoding courses for %s: %w", record.Id, err)
	}

	if doc.Email == "" {
		// Legacy documents carried the email only inside student_info
		doc.Email = NormalizeEmail(doc.Info.Email)
	}

	return doc, nil
}

// CommitBatch applies all queued writes transactionally, chunked at
// maxBatchOps per transaction. Any chunk failure aborts the commit.
func (s *pbStudentStore) CommitBatch(_ context.Context, writes []StudentWrite) error {
	for start := 0; start < len(writes); start += maxBatchOps {
		end := start + maxBatchOps
		if end > len(writes) {
			end = len(writes)
		}
		chunk := writes[start:end]

		err := s.app.RunInTransaction(func(txApp core.App) error {
			for _, write := range chunk {
				if err := s.applyWrite(txApp, write); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("batch commit (%d-%d of %d): %w", start, end, len(writes), err)
		}
	}

	slog.Info("Committed student writes", "count", len(writes))
	return nil
}

// applyWrite performs a single create or merge inside a transaction
func (s *pbStudentStore) applyWrite(txApp core.App, write StudentWrite) error {
	now := types.NowDateTime()

	if write.Create {
		col, err := txApp.FindCollectionByNameOrId(studentsCollection)
		if err != nil {
			return fmt.Errorf("finding collection %s: %w", studentsCollection, err)
		}

		record := core.NewRecord(col)
		record.Set("email", write.Doc.Email)
		record.Set("student_info", write.Doc.Info)
		record.Set("courses", write.Doc.Courses)
		record.Set("last_synced", now)

		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("creating student %s: %w", write.Doc.Email, err)
		}
		return nil
	}

	record, err := txApp.FindRecordById(studentsCollection, write.Doc.RecordID)
	if err != nil {
		return fmt.Errorf("loading student %s: %w", write.Doc.RecordID, err)
	}

	// Append-only merge: the engine already combined existing and new
	// courses into Doc.Courses against a consistent snapshot
	record.Set("courses", write.Doc.Courses)
	record.Set("last_synced", now)

	if err := txApp.Save(record); err != nil {
		return fmt.Errorf("updating student %s: %w", write.Doc.Email, err)
	}
	return nil
}

// ensureStudentsCollection creates the students collection on first start
func ensureStudentsCollection(app core.App) error {
	if _, err := app.FindCollectionByNameOrId(studentsCollection); err == nil {
		return nil
	}

	col := core.NewBaseCollection(studentsCollection)
	col.Fields.Add(
		&core.TextField{Name: "email", Required: true},
		&core.JSONField{Name: "student_info"},
		&core.JSONField{Name: "courses", MaxSize: 2 << 20},
		&core.DateField{Name: "last_synced"},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	col.AddIndex("idx_students_email", true, "email", "")

	if err := app.Save(col); err != nil {
		return fmt.Errorf("creating %s collection: %w", studentsCollection, err)
	}

	slog.Info("Created collection", "name", studentsCollection)
	return nil
}
