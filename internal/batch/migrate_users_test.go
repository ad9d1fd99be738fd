package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/repositories"
	"github.com/desertthunder/affmigrate/internal/shared"
	tu "github.com/desertthunder/affmigrate/internal/testing"
)

type fixture struct {
	directory  *tu.FakeDirectory
	affiliates *tu.FakeAffiliates
	store      *tu.RecordingStore
	observer   *recordingObserver
	proc       *MigrateUsers
}

func newFixture(t *testing.T, roles ...string) *fixture {
	t.Helper()

	f := &fixture{
		directory:  tu.NewFakeDirectory(),
		affiliates: &tu.FakeAffiliates{},
		store:      tu.NewRecordingStore(),
		observer:   &recordingObserver{},
	}
	f.proc = NewMigrateUsers(Deps{
		Directory:  f.directory,
		Affiliates: f.affiliates,
		Store:      f.store,
		Auth:       tu.Allow,
		Observer:   f.observer,
		Logger:     shared.NewLogger(io.Discard),
	})
	if err := f.proc.Init(&Config{Roles: roles}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return f
}

func (f *fixture) record(t *testing.T) progress.Record {
	t.Helper()
	rec, err := progress.NewTracker(f.store, MigrateUsersID).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return rec
}

// run drives the process from step 1 until Done and returns every step value returned.
func (f *fixture) run(t *testing.T) []Step {
	t.Helper()
	ctx := context.Background()

	if err := f.proc.PreFetch(ctx); err != nil {
		t.Fatalf("PreFetch() error = %v", err)
	}

	var returned []Step
	step := Step(1)
	for range 1000 {
		next, err := f.proc.ProcessStep(ctx, step)
		if err != nil {
			t.Fatalf("ProcessStep(%d) error = %v", step, err)
		}
		returned = append(returned, next)
		if next.IsDone() {
			return returned
		}
		step = next
	}
	t.Fatal("run did not finish")
	return nil
}

type observed struct {
	batchID   string
	converted int
	err       error
}

type recordingObserver struct {
	steps []observed
}

func (o *recordingObserver) ObserveStep(batchID string, converted int, _ time.Duration, err error) {
	o.steps = append(o.steps, observed{batchID: batchID, converted: converted, err: err})
}

func TestMigrateUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("migrates 250 subscribers in three pages", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(250, "subscriber")
		f.directory.SeedUsers(40, "editor")

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}
		if rec := f.record(t); !rec.HasTotal || rec.TotalCount != 250 {
			t.Fatalf("expected total 250, got %+v", rec)
		}

		expect := []struct {
			next     Step
			migrated int64
		}{
			{next: 2, migrated: 100},
			{next: 3, migrated: 200},
			{next: 4, migrated: 250},
			{next: Done, migrated: 250},
		}

		step := Step(1)
		for _, want := range expect {
			next, err := f.proc.ProcessStep(ctx, step)
			if err != nil {
				t.Fatalf("ProcessStep(%d) error = %v", step, err)
			}
			if next != want.next {
				t.Fatalf("ProcessStep(%d) = %v, want %v", step, next, want.next)
			}
			if rec := f.record(t); rec.MigratedCount != want.migrated {
				t.Errorf("after step %d: migrated = %d, want %d", step, rec.MigratedCount, want.migrated)
			}
			step = next
		}

		converted := f.affiliates.ConvertedUserIDs()
		if len(converted) != 250 {
			t.Fatalf("expected 250 affiliates, got %d", len(converted))
		}
		for i, id := range converted {
			if id != int64(i+1) {
				t.Fatalf("position %d: expected user %d, got %d", i, i+1, id)
			}
		}

		aff := f.affiliates.Inserted[0]
		if aff.Status != models.StatusActive || aff.PaymentEmail != "subscriber-1@example.com" || aff.DateRegistered.IsZero() {
			t.Errorf("unexpected affiliate %+v", aff)
		}

		if err := f.proc.Finish(ctx); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if f.store.Len() != 0 {
			t.Errorf("expected empty store after Finish, got %d keys", f.store.Len())
		}
	})

	t.Run("pages are ordered by id and limited", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(150, "subscriber")

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}
		if _, err := f.proc.ProcessStep(ctx, 2); err != nil {
			t.Fatalf("ProcessStep() error = %v", err)
		}

		q := f.directory.Queries[len(f.directory.Queries)-1]
		if q.Offset != 100 || q.Limit != PageSize {
			t.Errorf("expected offset 100 limit %d, got offset %d limit %d", PageSize, q.Offset, q.Limit)
		}
		if q.OrderBy != models.FieldID || q.Order != models.OrderAsc {
			t.Errorf("expected order by ID ASC, got %s %s", q.OrderBy, q.Order)
		}
		if !slices.Equal(q.Fields, []string{models.FieldID, models.FieldEmail, models.FieldRegistered}) {
			t.Errorf("unexpected fields %v", q.Fields)
		}
		if !slices.Equal(q.RoleIn, []string{"subscriber"}) {
			t.Errorf("unexpected roles %v", q.RoleIn)
		}
	})

	t.Run("pagination visits every candidate once", func(t *testing.T) {
		tt := []struct {
			name  string
			users int
			steps int
		}{
			{name: "no candidates", users: 0, steps: 0},
			{name: "single user", users: 1, steps: 1},
			{name: "exactly one page", users: 100, steps: 1},
			{name: "one over a page", users: 101, steps: 2},
			{name: "several pages", users: 250, steps: 3},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t, "subscriber")
				f.directory.SeedUsers(tc.users, "subscriber")

				returned := f.run(t)
				if nonTerminal := len(returned) - 1; nonTerminal != tc.steps {
					t.Errorf("expected %d non-terminal steps, got %d (%v)", tc.steps, nonTerminal, returned)
				}
				if got := len(f.affiliates.Inserted); got != tc.users {
					t.Errorf("expected %d conversions, got %d", tc.users, got)
				}
				if rec := f.record(t); rec.MigratedCount != int64(tc.users) {
					t.Errorf("expected migrated %d, got %d", tc.users, rec.MigratedCount)
				}
			})
		}
	})

	t.Run("existing affiliates are not converted again", func(t *testing.T) {
		f := newFixture(t, "subscriber", "customer")
		f.directory.SeedUsers(120, "subscriber")
		f.directory.SeedUsers(30, "customer")
		f.affiliates.Existing = []int64{1, 2, 3, 101, 150}

		f.run(t)

		rec := f.record(t)
		if rec.TotalCount != 145 || rec.MigratedCount != 145 {
			t.Errorf("expected 145/145, got %d/%d", rec.MigratedCount, rec.TotalCount)
		}

		seen := map[int64]bool{}
		for _, id := range f.affiliates.ConvertedUserIDs() {
			if slices.Contains(f.affiliates.Existing, id) {
				t.Errorf("user %d already had an affiliate", id)
			}
			if seen[id] {
				t.Errorf("user %d converted twice", id)
			}
			seen[id] = true
		}
	})

	t.Run("migrated count never decreases", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(333, "subscriber")

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}

		var last int64
		for step := Step(1); !step.IsDone(); {
			next, err := f.proc.ProcessStep(ctx, step)
			if err != nil {
				t.Fatalf("ProcessStep(%d) error = %v", step, err)
			}
			rec := f.record(t)
			if rec.MigratedCount < last {
				t.Fatalf("migrated count went from %d to %d", last, rec.MigratedCount)
			}
			last = rec.MigratedCount
			step = next
		}
	})

	t.Run("Done is a no-op", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(5, "subscriber")

		next, err := f.proc.ProcessStep(ctx, Done)
		if err != nil || next != Done {
			t.Errorf("ProcessStep(Done) = %v, %v; want done, nil", next, err)
		}
		if f.store.TotalWrites() != 0 || len(f.affiliates.Inserted) != 0 || len(f.directory.Queries) != 0 {
			t.Error("ProcessStep(Done) should have no side effects")
		}
	})

	t.Run("step outside range is rejected", func(t *testing.T) {
		f := newFixture(t, "subscriber")

		for _, step := range []Step{0, -7, MaxStep + 1, Step(math.MaxInt)} {
			if _, err := f.proc.ProcessStep(ctx, step); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("ProcessStep(%d) error = %v, want ErrInvalidArgument", step, err)
			}
		}
	})

	t.Run("insert failure keeps partial count", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(180, "subscriber")
		insertErr := errors.New("duplicate affiliate")
		f.affiliates.FailOn = 151
		f.affiliates.InsertErr = insertErr

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}
		if _, err := f.proc.ProcessStep(ctx, 1); err != nil {
			t.Fatalf("ProcessStep(1) error = %v", err)
		}

		_, err := f.proc.ProcessStep(ctx, 2)
		if err != insertErr {
			t.Fatalf("expected the insert error unchanged, got %v", err)
		}
		if rec := f.record(t); rec.MigratedCount != 150 {
			t.Errorf("expected migrated 150 after partial page, got %d", rec.MigratedCount)
		}

		last := f.observer.steps[len(f.observer.steps)-1]
		if last.converted != 50 || last.err != insertErr {
			t.Errorf("expected observer to see 50 converted with error, got %+v", last)
		}
	})

	t.Run("insert failure on first user writes nothing", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(10, "subscriber")
		f.affiliates.FailOn = 1
		f.affiliates.InsertErr = errors.New("db locked")

		if _, err := f.proc.ProcessStep(ctx, 1); err == nil {
			t.Fatal("expected error")
		}
		if n := f.store.Writes[progress.KeysFor(MigrateUsersID).MigratedCount]; n != 0 {
			t.Errorf("expected no counter write, got %d", n)
		}
	})

	t.Run("directory failure is returned", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		listErr := errors.New("directory offline")
		f.directory.ListErr = listErr

		if _, err := f.proc.ProcessStep(ctx, 1); !errors.Is(err, listErr) {
			t.Errorf("expected directory error, got %v", err)
		}
	})

	t.Run("observer sees each executed step", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(120, "subscriber")

		f.run(t)

		if len(f.observer.steps) != 3 {
			t.Fatalf("expected 3 observed steps, got %d", len(f.observer.steps))
		}
		got := []int{f.observer.steps[0].converted, f.observer.steps[1].converted, f.observer.steps[2].converted}
		if !slices.Equal(got, []int{100, 20, 0}) {
			t.Errorf("expected conversions [100 20 0], got %v", got)
		}
		if f.observer.steps[0].batchID != MigrateUsersID {
			t.Errorf("expected batch id %s, got %s", MigrateUsersID, f.observer.steps[0].batchID)
		}
	})
}

func TestMigrateUsersConfigGuard(t *testing.T) {
	ctx := context.Background()

	tt := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "empty roles", cfg: &Config{}},
		{name: "blank roles", cfg: &Config{Roles: []string{" ", ""}}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.directory.SeedUsers(10, "subscriber")
			if err := f.proc.Init(tc.cfg); err != nil {
				t.Fatalf("Init() error = %v", err)
			}

			for _, step := range []Step{1, 2, 50, 0, Done} {
				next, err := f.proc.ProcessStep(ctx, step)
				if !errors.Is(err, shared.ErrNoRolesFound) {
					t.Errorf("ProcessStep(%v) error = %v, want ErrNoRolesFound", step, err)
				}
				if ErrorCode(err) != CodeNoRolesFound {
					t.Errorf("ErrorCode() = %s, want %s", ErrorCode(err), CodeNoRolesFound)
				}
				if next == Done {
					t.Errorf("ProcessStep(%v) must not report done", step)
				}
			}

			if f.store.TotalWrites() != 0 || len(f.affiliates.Inserted) != 0 {
				t.Error("guarded calls should not mutate state")
			}
		})
	}

	t.Run("roles supplied by a later Init", func(t *testing.T) {
		f := newFixture(t)
		f.directory.SeedUsers(3, "subscriber")

		if _, err := f.proc.ProcessStep(ctx, 1); !errors.Is(err, shared.ErrNoRolesFound) {
			t.Fatalf("expected ErrNoRolesFound, got %v", err)
		}
		if err := f.proc.Init(&Config{Roles: []string{"subscriber"}}); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if next, err := f.proc.ProcessStep(ctx, 1); err != nil || next != 2 {
			t.Errorf("ProcessStep(1) = %v, %v; want 2, nil", next, err)
		}
	})

	t.Run("empty Init keeps earlier roles", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		if err := f.proc.Init(&Config{}); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if !slices.Equal(f.proc.Roles(), []string{"subscriber"}) {
			t.Errorf("expected roles to survive, got %v", f.proc.Roles())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		if err := (&Config{}).Validate(); !errors.Is(err, shared.ErrNoRolesFound) {
			t.Errorf("expected ErrNoRolesFound, got %v", err)
		}
		var nilCfg *Config
		if err := nilCfg.Validate(); !errors.Is(err, shared.ErrNoRolesFound) {
			t.Errorf("expected ErrNoRolesFound for nil config, got %v", err)
		}
		if err := (&Config{Roles: []string{"subscriber"}}).Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})
}

func TestMigrateUsersPreFetch(t *testing.T) {
	ctx := context.Background()
	keys := progress.KeysFor(MigrateUsersID)

	t.Run("second call only reads", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(20, "subscriber")
		f.affiliates.Existing = []int64{4}

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}
		writes := f.store.TotalWrites()

		f.directory.SeedUsers(30, "subscriber")
		f.affiliates.Existing = append(f.affiliates.Existing, 5)

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("second PreFetch() error = %v", err)
		}
		if f.store.TotalWrites() != writes {
			t.Errorf("second PreFetch wrote %d times", f.store.TotalWrites()-writes)
		}
		if f.affiliates.IDsCalls != 1 {
			t.Errorf("expected affiliate ids fetched once, got %d", f.affiliates.IDsCalls)
		}

		rec := f.record(t)
		if rec.TotalCount != 19 || !slices.Equal(rec.ExcludedIDs, []int64{4}) {
			t.Errorf("expected first snapshot to stick, got %+v", rec)
		}
	})

	t.Run("without roles snapshots exclusions only", func(t *testing.T) {
		f := newFixture(t)
		f.affiliates.Existing = []int64{7}

		if err := f.proc.PreFetch(ctx); err != nil {
			t.Fatalf("PreFetch() error = %v", err)
		}
		rec := f.record(t)
		if !rec.HasSnapshot || rec.HasTotal {
			t.Errorf("expected exclusion snapshot without total, got %+v", rec)
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.store.Fail[keys.TotalCount] = true

		if err := f.proc.PreFetch(ctx); !errors.Is(err, f.store.FailErr) {
			t.Errorf("expected store error, got %v", err)
		}
	})

	t.Run("affiliate lookup failure is returned", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.affiliates.IDsErr = errors.New("affiliates table missing")

		if err := f.proc.PreFetch(ctx); !errors.Is(err, f.affiliates.IDsErr) {
			t.Errorf("expected lookup error, got %v", err)
		}
		if f.store.TotalWrites() != 0 {
			t.Error("nothing should be written when the lookup fails")
		}
	})

	t.Run("count failure is returned", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.CountErr = errors.New("count timed out")

		if err := f.proc.PreFetch(ctx); !errors.Is(err, f.directory.CountErr) {
			t.Errorf("expected count error, got %v", err)
		}
		if f.record(t).HasTotal {
			t.Error("total should stay absent after a failed count")
		}
	})
}

func TestMigrateUsersFinish(t *testing.T) {
	ctx := context.Background()
	keys := progress.KeysFor(MigrateUsersID)

	t.Run("clears every key and is idempotent", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.directory.SeedUsers(10, "subscriber")
		f.run(t)

		for range 2 {
			if err := f.proc.Finish(ctx); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
		}
		for _, key := range keys.All() {
			if _, ok, _ := f.store.Get(ctx, key); ok {
				t.Errorf("key %s should be cleared", key)
			}
			if f.store.Deletes[key] != 2 {
				t.Errorf("expected 2 deletes of %s, got %d", key, f.store.Deletes[key])
			}
		}
	})

	t.Run("clears keys written out of order", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.store.Write(ctx, keys.MigratedCount, "12")

		if err := f.proc.Finish(ctx); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if f.store.Len() != 0 {
			t.Errorf("expected empty store, got %d keys", f.store.Len())
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		f := newFixture(t, "subscriber")
		f.store.Fail[keys.ExcludedIDs] = true

		if err := f.proc.Finish(ctx); !errors.Is(err, f.store.FailErr) {
			t.Errorf("expected store error, got %v", err)
		}
	})
}

func TestMigrateUsersCanProcess(t *testing.T) {
	ctx := context.Background()

	tt := []struct {
		name string
		auth Authorizer
		want bool
	}{
		{name: "allowed", auth: tu.Allow, want: true},
		{name: "denied", auth: tu.Deny, want: false},
		{name: "no authorizer", auth: nil, want: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			proc := NewMigrateUsers(Deps{Store: progress.NewMemoryStore(), Auth: tc.auth})
			if got := proc.CanProcess(ctx); got != tc.want {
				t.Errorf("CanProcess() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMigrateUsersSQLite(t *testing.T) {
	ctx := context.Background()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repositories.NewUserRepository(db)
	affiliates := repositories.NewAffiliateRepository(db)
	for i := range 130 {
		role := "subscriber"
		if i%10 == 0 {
			role = "editor"
		}
		u := &models.User{
			Login: fmt.Sprintf("%s-%d", role, i),
			Email: fmt.Sprintf("user-%d@example.com", i),
			Roles: []string{role},
		}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if i == 5 {
			if _, err := affiliates.InsertAffiliate(ctx, models.NewAffiliateFromUser(*u)); err != nil {
				t.Fatalf("failed to insert affiliate: %v", err)
			}
		}
	}

	proc := NewMigrateUsers(Deps{
		Directory:  users,
		Affiliates: affiliates,
		Store:      repositories.NewOptionRepository(db),
		Auth:       tu.Allow,
	})
	if err := proc.Init(&Config{Roles: []string{"subscriber"}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := proc.PreFetch(ctx); err != nil {
		t.Fatalf("PreFetch() error = %v", err)
	}

	var steps []Step
	for step := Step(1); !step.IsDone(); {
		next, err := proc.ProcessStep(ctx, step)
		if err != nil {
			t.Fatalf("ProcessStep(%d) error = %v", step, err)
		}
		steps = append(steps, next)
		step = next
	}
	if !slices.Equal(steps, []Step{2, 3, Done}) {
		t.Errorf("expected steps [2 3 done], got %v", steps)
	}

	count, err := affiliates.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	// 117 subscribers, one of which already had an affiliate
	if count != 117 {
		t.Errorf("expected 117 affiliates, got %d", count)
	}

	if err := proc.Finish(ctx); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	var left int
	if err := db.QueryRow("SELECT COUNT(*) FROM options").Scan(&left); err != nil {
		t.Fatalf("failed to count options: %v", err)
	}
	if left != 0 {
		t.Errorf("expected options to be cleared, got %d", left)
	}
}

func TestMigrateUsersSQLiteStepBound(t *testing.T) {
	ctx := context.Background()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	users := repositories.NewUserRepository(db)
	affiliates := repositories.NewAffiliateRepository(db)
	for i := range 5 {
		u := &models.User{
			Login: fmt.Sprintf("subscriber-%d", i),
			Email: fmt.Sprintf("subscriber-%d@example.com", i),
			Roles: []string{"subscriber"},
		}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	proc := NewMigrateUsers(Deps{
		Directory:  users,
		Affiliates: affiliates,
		Store:      repositories.NewOptionRepository(db),
		Auth:       tu.Allow,
	})
	if err := proc.Init(&Config{Roles: []string{"subscriber"}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := proc.PreFetch(ctx); err != nil {
		t.Fatalf("PreFetch() error = %v", err)
	}
	if next, err := proc.ProcessStep(ctx, 1); err != nil || next != 2 {
		t.Fatalf("ProcessStep(1) = %v, %v; want 2", next, err)
	}

	// an offset that wraps negative would reread the first page
	for _, step := range []Step{MaxStep + 1, Step(math.MaxInt / PageSize * 2)} {
		if _, err := proc.ProcessStep(ctx, step); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("ProcessStep(%d) error = %v, want ErrInvalidArgument", step, err)
		}
	}

	count, err := affiliates.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 affiliates, got %d", count)
	}
}
