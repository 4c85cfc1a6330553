package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/licensekit/pkg/billing"
	"github.com/dmitrymomot/licensekit/pkg/license"
	"github.com/dmitrymomot/licensekit/pkg/queue"
)

// Notifier delivers a license-issued notification to its owner. Delivery is
// best effort: failures are logged, never retried through the job.
type Notifier interface {
	LicenseIssued(ctx context.Context, user *User, lic *license.License) error
}

// Processor executes issuance jobs. Errors it returns are treated as
// transient by the worker and retried with backoff; everything the job can
// classify as permanent or expected is swallowed after logging.
type Processor struct {
	users     UserDirectory
	billing   billing.SyncStore
	licenses  license.Store
	generator *license.Generator
	notifier  Notifier
	logger    *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithNotifier attaches an owner notification channel.
func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) {
		p.notifier = n
	}
}

// WithLogger sets the processor's logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates an issuance processor. All of users, store, licenses
// and generator are required.
func NewProcessor(users UserDirectory, store billing.SyncStore, licenses license.Store, generator *license.Generator, opts ...ProcessorOption) (*Processor, error) {
	if users == nil || store == nil || licenses == nil || generator == nil {
		return nil, errors.New("issuance processor requires users, billing store, license store and generator")
	}

	p := &Processor{
		users:     users,
		billing:   store,
		licenses:  licenses,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handler adapts the processor into a queue handler for IssueLicense tasks.
func (p *Processor) Handler() queue.Handler {
	return queue.NewTaskHandler(p.Process)
}

// Process runs one issuance attempt end to end.
func (p *Processor) Process(ctx context.Context, job IssueLicense) error {
	log := p.logger.With(
		slog.String("user_id", job.UserID.String()),
		slog.String("subscription_id", job.SubscriptionID.String()),
		slog.Bool("renewal", job.Renewal))

	// Entities may have been deleted between enqueue and execution; that is
	// expected, the job simply has nothing to do.
	user, err := p.users.UserByID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Info("skipping issuance, user no longer exists")
			return nil
		}
		return fmt.Errorf("resolve user: %w", err)
	}

	sub, err := p.billing.SubscriptionByID(ctx, job.SubscriptionID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			log.Info("skipping issuance, subscription no longer exists")
			return nil
		}
		return fmt.Errorf("resolve subscription: %w", err)
	}

	charge, err := p.resolveCharge(ctx, job, sub)
	if err != nil {
		return err
	}
	if charge == nil {
		log.Info("skipping issuance, no charge resolved")
		return nil
	}
	log = log.With(slog.String("charge_id", charge.ID.String()))

	// Primary gate: one license per charge, ever. The store constraint is
	// the source of truth; this check only short-circuits the common case.
	exists, err := p.licenses.ExistsByCharge(ctx, charge.ID)
	if err != nil {
		return fmt.Errorf("check charge gate: %w", err)
	}
	if exists {
		log.Info("skipping issuance, license already exists for charge")
		return nil
	}

	// Secondary gate, initial subscriptions only. Best effort: two racing
	// initial events for the same pair can both pass here, the charge
	// constraint still caps it at one license per charge.
	if !job.Renewal {
		exists, err := p.licenses.ExistsBySubscription(ctx, user.ID, sub.ID)
		if err != nil {
			return fmt.Errorf("check subscription gate: %w", err)
		}
		if exists {
			log.Info("skipping issuance, license already exists for subscription")
			return nil
		}
	}

	lic, err := p.generator.Issue(ctx, user.ID, sub, charge)
	if err != nil {
		switch {
		case errors.Is(err, license.ErrDuplicateCharge):
			// Lost the race to a concurrent execution for the same charge.
			log.Info("skipping issuance, concurrent issuance won the charge")
			return nil
		case errors.Is(err, license.ErrUnknownPlan):
			// Misconfiguration, retrying cannot fix it. Drop with full
			// correlation identifiers for manual remediation.
			log.Error("dropping issuance, subscription price matches no configured plan",
				slog.String("processor_plan", sub.ProcessorPlan))
			return nil
		default:
			return fmt.Errorf("issue license: %w", err)
		}
	}

	log.Info("license issued",
		slog.String("license_id", lic.LicenseID),
		slog.String("plan", string(lic.Plan)),
		slog.Time("expires_at", lic.ExpiresAt))

	if p.notifier != nil {
		if err := p.notifier.LicenseIssued(ctx, user, lic); err != nil {
			log.Error("license issued but notification failed",
				slog.String("license_id", lic.LicenseID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// resolveCharge looks up the explicit charge when the job names one,
// otherwise falls back to the subscription's most recent charge. A nil
// result with nil error means no charge is visible yet.
func (p *Processor) resolveCharge(ctx context.Context, job IssueLicense, sub *billing.Subscription) (*billing.Charge, error) {
	if job.ChargeID != nil {
		charge, err := p.billing.ChargeByID(ctx, *job.ChargeID)
		if err != nil {
			if errors.Is(err, billing.ErrChargeNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("resolve charge %s: %w", job.ChargeID, err)
		}
		return charge, nil
	}

	charge, err := p.billing.LatestChargeBySubscription(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, billing.ErrChargeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve latest charge for subscription %s: %w", sub.ID, err)
	}
	return charge, nil
}

// memoryDirectory is a map-backed UserDirectory for tests and local setups.
type memoryDirectory struct {
	users map[uuid.UUID]*User
}

// NewMemoryDirectory creates a UserDirectory over a fixed set of users.
func NewMemoryDirectory(users ...*User) UserDirectory {
	dir := &memoryDirectory{users: make(map[uuid.UUID]*User, len(users))}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *memoryDirectory) UserByID(_ context.Context, id uuid.UUID) (*User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *user
	return &userCopy, nil
}
