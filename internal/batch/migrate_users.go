package batch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/permissions"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
)

const (
	// MigrateUsersID is the batch id of [MigrateUsers].
	MigrateUsersID = "migrate-users"
	// PageSize is the number of users converted per step.
	PageSize = 100
)

// MigrateUsers converts users holding any of the configured roles into active affiliates.
//
// Users that already owned an affiliate when PreFetch ran are skipped. Pages are read with
// a live offset over the remaining candidates, ordered by id.
type MigrateUsers struct {
	roles      []string
	directory  Directory
	affiliates AffiliateStore
	auth       Authorizer
	observer   Observer
	tracker    *progress.Tracker
	logger     *log.Logger
}

// NewMigrateUsers creates the process. Call Init before the first step.
func NewMigrateUsers(deps Deps) *MigrateUsers {
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &MigrateUsers{
		directory:  deps.Directory,
		affiliates: deps.Affiliates,
		auth:       deps.Auth,
		observer:   deps.Observer,
		tracker:    progress.NewTracker(deps.Store, MigrateUsersID),
		logger:     logger.With("batch", MigrateUsersID),
	}
}

func (m *MigrateUsers) ID() string {
	return MigrateUsersID
}

// Init sets the roles to migrate. A nil cfg or one without roles leaves them unset,
// and ProcessStep reports [shared.ErrNoRolesFound] until a later Init supplies some.
func (m *MigrateUsers) Init(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if roles := cleanRoles(cfg.Roles); len(roles) > 0 {
		m.roles = roles
	}
	return nil
}

// Roles returns a copy of the configured roles.
func (m *MigrateUsers) Roles() []string {
	return slices.Clone(m.roles)
}

// PreFetch snapshots the users that already own an affiliate and the number of candidates left.
//
// Each value is computed only when absent from the store, so repeated calls read the
// first snapshot. The candidate count needs roles; without them only the exclusion
// snapshot is taken and a warning is logged.
func (m *MigrateUsers) PreFetch(ctx context.Context) error {
	excluded, ok, err := m.tracker.ExcludedIDs(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if excluded, err = m.affiliates.AffiliateUserIDs(ctx); err != nil {
			return err
		}
		if err := m.tracker.SetExcludedIDs(ctx, excluded); err != nil {
			return err
		}
		m.logger.Debug("snapshotted existing affiliates", "count", len(excluded))
	}

	if _, ok, err := m.tracker.TotalCount(ctx); err != nil || ok {
		return err
	}

	if len(m.roles) == 0 {
		m.logger.Warn("no roles set, skipping candidate count", "excluded", len(excluded))
		return nil
	}

	total, err := m.directory.CountUsers(ctx, models.UserQuery{RoleIn: m.roles, Exclude: excluded})
	if err != nil {
		return err
	}
	if err := m.tracker.SetTotalCount(ctx, int64(total)); err != nil {
		return err
	}

	m.logger.Info("counted migration candidates", "roles", m.roles, "total", total, "excluded", len(excluded))
	return nil
}

// CanProcess reports whether the principal in ctx may manage affiliates.
//
// ProcessStep does not call it.
func (m *MigrateUsers) CanProcess(ctx context.Context) bool {
	if m.auth == nil {
		return false
	}
	return m.auth.CurrentPrincipalCan(ctx, permissions.ManageAffiliates)
}

// ProcessStep converts the page of candidates at step and returns the next step,
// or [Done] once a page comes back empty.
//
// Passing [Done] returns Done without touching anything. If an insert fails, the
// count of users converted before the failure is still added to the migrated count
// and the insert error is returned unchanged.
func (m *MigrateUsers) ProcessStep(ctx context.Context, step Step) (Step, error) {
	if len(m.roles) == 0 {
		return 0, shared.ErrNoRolesFound
	}
	if step == Done {
		return Done, nil
	}
	if step < 1 || step > MaxStep {
		return 0, fmt.Errorf("%w: step %d", shared.ErrInvalidArgument, step)
	}

	start := time.Now()
	next, converted, err := m.processPage(ctx, step)
	if m.observer != nil {
		m.observer.ObserveStep(MigrateUsersID, converted, time.Since(start), err)
	}
	return next, err
}

func (m *MigrateUsers) processPage(ctx context.Context, step Step) (Step, int, error) {
	migrated, err := m.tracker.MigratedCount(ctx)
	if err != nil {
		return 0, 0, err
	}

	excluded, _, err := m.tracker.ExcludedIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	users, err := m.directory.ListUsers(ctx, models.UserQuery{
		RoleIn:  m.roles,
		Exclude: excluded,
		Offset:  (int(step) - 1) * PageSize,
		Limit:   PageSize,
		OrderBy: models.FieldID,
		Order:   models.OrderAsc,
		Fields:  []string{models.FieldID, models.FieldEmail, models.FieldRegistered},
	})
	if err != nil {
		return 0, 0, err
	}

	if len(users) == 0 {
		m.logger.Info("no candidates left", "step", step, "migrated", migrated)
		return Done, 0, nil
	}

	converted := 0
	for _, u := range users {
		if _, err := m.affiliates.InsertAffiliate(ctx, models.NewAffiliateFromUser(u)); err != nil {
			m.logger.Error("affiliate insert failed", "step", step, "user_id", u.ID, "error", err)
			if converted > 0 {
				if werr := m.tracker.SetMigratedCount(ctx, migrated+int64(converted)); werr != nil {
					m.logger.Error("failed to record partial progress", "error", werr)
				}
			}
			return 0, converted, err
		}
		converted++
	}

	migrated += int64(converted)
	if err := m.tracker.SetMigratedCount(ctx, migrated); err != nil {
		return 0, converted, err
	}

	m.logger.Debug("step complete", "step", step, "converted", converted, "migrated", migrated)
	return step + 1, converted, nil
}

// Finish removes every progress key of the run. It is safe to call more than once.
func (m *MigrateUsers) Finish(ctx context.Context) error {
	if err := m.tracker.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info("cleared progress")
	return nil
}
