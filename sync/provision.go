package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/security"
)

// usersCollection is the auth collection students log into the portal with
const usersCollection = "users"

// generatedPasswordLength is used when an order carried no password
// customization
const generatedPasswordLength = 12

// pbProvisioner provisions portal credentials in the PocketBase auth
// collection
type pbProvisioner struct {
	app core.App
}

// NewProvisioner creates the PocketBase-backed credential provisioner
func NewProvisioner(app core.App) Provisioner {
	return &pbProvisioner{app: app}
}

// EnsureUser creates an auth record for the email if none exists. An
// existing user is success, not a conflict.
func (p *pbProvisioner) EnsureUser(_ context.Context, email, password, displayName string) error {
	if _, err := p.app.FindAuthRecordByEmail(usersCollection, email); err == nil {
		slog.Debug("User already provisioned", "email", email)
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("looking up user %s: %w", email, err)
	}

	col, err := p.app.FindCollectionByNameOrId(usersCollection)
	if err != nil {
		return fmt.Errorf("finding collection %s: %w", usersCollection, err)
	}

	if password == "" {
		password = security.RandomString(generatedPasswordLength)
	}

	record := core.NewRecord(col)
	record.SetEmail(email)
	record.SetPassword(password)
	record.Set("name", displayName)

	if err := p.app.Save(record); err != nil {
		return fmt.Errorf("creating user %s: %w", email, err)
	}

	slog.Info("Provisioned portal user", "email", email)
	return nil
}
