package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
)

// Step is a 1-based page index, or [Done].
type Step int

// Done marks a finished run.
const Done Step = -1

// MaxStep is the last step whose page offset fits in an int.
const MaxStep = Step((math.MaxInt-1)/PageSize + 1)

func (s Step) IsDone() bool {
	return s == Done
}

func (s Step) String() string {
	if s == Done {
		return "done"
	}
	return strconv.Itoa(int(s))
}

// ParseStep accepts an integer between 1 and [MaxStep] or "done".
func ParseStep(s string) (Step, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "done") {
		return Done, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !inRange(n) {
		return 0, fmt.Errorf("%w: step %q", shared.ErrInvalidArgument, s)
	}
	return Step(n), nil
}

func inRange(n int) bool {
	return n >= 1 && n <= int(MaxStep)
}

// MarshalJSON encodes [Done] as "done" and other steps as numbers.
func (s Step) MarshalJSON() ([]byte, error) {
	if s == Done {
		return []byte(`"done"`), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		step, err := ParseStep(str)
		if err != nil {
			return err
		}
		*s = step
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: step must be a number or \"done\"", shared.ErrInvalidArgument)
	}
	if !inRange(n) {
		return fmt.Errorf("%w: step %d", shared.ErrInvalidArgument, n)
	}
	*s = Step(n)
	return nil
}

// Config is the per-run configuration passed to Init.
type Config struct {
	Roles []string `json:"roles"`
}

// Validate reports [shared.ErrNoRolesFound] when no usable role is set.
//
// Init does not call it; ProcessStep enforces the same rule on every call.
func (c *Config) Validate() error {
	if c == nil || len(cleanRoles(c.Roles)) == 0 {
		return shared.ErrNoRolesFound
	}
	return nil
}

func cleanRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// Directory lists and counts users.
type Directory interface {
	ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, error)
	CountUsers(ctx context.Context, q models.UserQuery) (int, error)
}

// AffiliateStore creates affiliates and lists the users that already own one.
type AffiliateStore interface {
	InsertAffiliate(ctx context.Context, aff *models.Affiliate) (int64, error)
	AffiliateUserIDs(ctx context.Context) ([]int64, error)
}

// Authorizer answers capability checks for the principal carried by a context.
type Authorizer interface {
	CurrentPrincipalCan(ctx context.Context, capability string) bool
}

// Observer is notified after every executed step.
type Observer interface {
	ObserveStep(batchID string, converted int, d time.Duration, err error)
}

// Process is a resumable batch process.
type Process interface {
	ID() string
	Init(cfg *Config) error
	PreFetch(ctx context.Context) error
	CanProcess(ctx context.Context) bool
	ProcessStep(ctx context.Context, step Step) (Step, error)
	Finish(ctx context.Context) error
}

// Deps are the collaborators a process is built from. Observer and Logger are optional.
type Deps struct {
	Directory  Directory
	Affiliates AffiliateStore
	Store      progress.Store
	Auth       Authorizer
	Observer   Observer
	Logger     *log.Logger
}

// Factory builds a process from its dependencies.
type Factory func(deps Deps) Process

// Registry maps batch ids to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry holding every built-in process.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(MigrateUsersID, func(deps Deps) Process { return NewMigrateUsers(deps) })
	return r
}

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.factories[id] = f
}

// New builds the process registered under id.
func (r *Registry) New(id string, deps Deps) (Process, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownBatch, id)
	}
	return f(deps), nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Error codes returned by [ErrorCode].
const (
	CodeNoRolesFound     = "no_roles_found"
	CodePermissionDenied = "permission_denied"
	CodeInvalidArgument  = "invalid_argument"
	CodeUnknownBatch     = "unknown_batch"
	CodeInternal         = "internal_error"
)

// ErrorCode returns the stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrNoRolesFound):
		return CodeNoRolesFound
	case errors.Is(err, shared.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, shared.ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, shared.ErrUnknownBatch):
		return CodeUnknownBatch
	default:
		return CodeInternal
	}
}
