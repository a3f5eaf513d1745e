package services

import (
	"context"
	"fmt"

	"totalx/internal/admin"
	"totalx/internal/core"
	"totalx/internal/events"
	"totalx/internal/export"
	"totalx/internal/ledger"
	"totalx/internal/log"
	"totalx/internal/principal"
	"totalx/internal/reply"
)

// LedgerService runs every chat command: it resolves the actor's store,
// applies the operation on the ledger, publishes the resulting event and
// renders the reply.
type LedgerService struct {
	ledger    *ledger.Ledger
	admins    *admin.Registry
	resolver  *principal.Resolver
	publisher events.Publisher
	currency  string
	refresh   bool
	logger    *log.Logger
}

type Option func(*LedgerService)

// WithAdminRefresh reloads the dynamic admins before every command. Needed
// when other processes (totalxctl, another server) share the admin store.
func WithAdminRefresh() Option {
	return func(s *LedgerService) { s.refresh = true }
}

// WithPublisher publishes an event after every committed mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithCurrency sets the ISO code used for display amounts.
func WithCurrency(code string) Option {
	return func(s *LedgerService) { s.currency = code }
}

func NewLedgerService(l *ledger.Ledger, admins *admin.Registry, opts ...Option) *LedgerService {
	s := &LedgerService{
		ledger:    l,
		admins:    admins,
		resolver:  principal.NewResolver(admins),
		publisher: events.Nop{},
		currency:  "EUR",
		logger:    log.WithComponent(log.ComponentService),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MovementResult answers add and subtract.
type MovementResult struct {
	StoreKey       core.StoreKey `json:"-"`
	Movement       core.Movement `json:"movement"`
	Balance        core.Money    `json:"balance"`
	BalanceDisplay string        `json:"balance_display"`
	Message        string        `json:"message"`
}

type TotalResult struct {
	StoreKey       core.StoreKey `json:"-"`
	Balance        core.Money    `json:"balance"`
	BalanceDisplay string        `json:"balance_display"`
	Message        string        `json:"message"`
}

type ReportResult struct {
	StoreKey core.StoreKey `json:"-"`
	Summary  core.Summary  `json:"summary"`
	Empty    bool          `json:"empty"`
	Message  string        `json:"message"`
}

type ExportResult struct {
	StoreKey    core.StoreKey
	FileName    string
	ContentType string
	Data        []byte
}

type UndoResult struct {
	StoreKey core.StoreKey  `json:"-"`
	Removed  bool           `json:"removed"`
	Movement *core.Movement `json:"movement,omitempty"`
	Balance  core.Money     `json:"balance"`
	Message  string         `json:"message"`
}

type ResetResult struct {
	StoreKey core.StoreKey `json:"-"`
	Message  string        `json:"message"`
}

type SetAdminResult struct {
	Target  core.Identity `json:"target"`
	Granted bool          `json:"granted"`
	Message string        `json:"message"`
}

type AdminListResult struct {
	Admins  []core.Identity `json:"admins"`
	Message string          `json:"message"`
}

// Add records a credit of rawAmount for actor.
func (s *LedgerService) Add(ctx context.Context, actor core.Identity, rawAmount string) (MovementResult, error) {
	amount, err := core.ParseUnsignedAmount(rawAmount)
	if err != nil {
		return MovementResult{}, err
	}
	res, err := s.appendMovement(ctx, log.OpAdd, actor, amount)
	if err != nil {
		return MovementResult{}, err
	}
	res.Message = reply.Added(amount, res.Balance)
	return res, nil
}

// Subtract records a debit of rawAmount for actor.
func (s *LedgerService) Subtract(ctx context.Context, actor core.Identity, rawAmount string) (MovementResult, error) {
	amount, err := core.ParseUnsignedAmount(rawAmount)
	if err != nil {
		return MovementResult{}, err
	}
	res, err := s.appendMovement(ctx, log.OpSubtract, actor, amount.Neg())
	if err != nil {
		return MovementResult{}, err
	}
	res.Message = reply.Subtracted(amount, res.Balance)
	return res, nil
}

// resolve picks actor's store against an up-to-date admin set.
func (s *LedgerService) resolve(ctx context.Context, op string, actor core.Identity) (core.StoreKey, error) {
	if err := s.refreshAdmins(ctx, op, actor); err != nil {
		return core.StoreKey{}, err
	}
	return s.resolver.Resolve(actor), nil
}

func (s *LedgerService) refreshAdmins(ctx context.Context, op string, actor core.Identity) error {
	if !s.refresh {
		return nil
	}
	if err := s.admins.Refresh(ctx); err != nil {
		log.LogCommandError(ctx, "Failed to refresh admins", err, op, actor.String(), "")
		return err
	}
	return nil
}

func (s *LedgerService) appendMovement(ctx context.Context, op string, actor core.Identity, amount core.Money) (MovementResult, error) {
	key, err := s.resolve(ctx, op, actor)
	if err != nil {
		return MovementResult{}, err
	}
	res, err := s.ledger.Append(ctx, key, actor, amount)
	if err != nil {
		log.LogCommandError(ctx, "Failed to record movement", err, op, actor.String(), key.String())
		return MovementResult{}, err
	}

	s.publish(ctx, events.MovementEvent(events.KindMovementAppended, key, res.Movement, res.Balance))

	s.logger.InfoContext(ctx, "Movement recorded",
		log.FieldOperation, op,
		log.FieldActor, actor.String(),
		log.FieldStoreKey, key.String(),
		log.FieldAmount, amount.String(),
		log.FieldBalance, res.Balance.String())

	return MovementResult{
		StoreKey:       key,
		Movement:       res.Movement,
		Balance:        res.Balance,
		BalanceDisplay: reply.Display(res.Balance, s.currency),
	}, nil
}

func (s *LedgerService) Total(ctx context.Context, actor core.Identity) (TotalResult, error) {
	key, err := s.resolve(ctx, log.OpTotal, actor)
	if err != nil {
		return TotalResult{}, err
	}
	balance, err := s.ledger.Balance(ctx, key)
	if err != nil {
		log.LogCommandError(ctx, "Failed to read balance", err, log.OpTotal, actor.String(), key.String())
		return TotalResult{}, err
	}
	return TotalResult{
		StoreKey:       key,
		Balance:        balance,
		BalanceDisplay: reply.Display(balance, s.currency),
		Message:        reply.Total(balance),
	}, nil
}

func (s *LedgerService) Report(ctx context.Context, actor core.Identity) (ReportResult, error) {
	key, err := s.resolve(ctx, log.OpReport, actor)
	if err != nil {
		return ReportResult{}, err
	}
	sum, err := s.ledger.Summary(ctx, key)
	if err != nil {
		log.LogCommandError(ctx, "Failed to build report", err, log.OpReport, actor.String(), key.String())
		return ReportResult{}, err
	}
	return ReportResult{StoreKey: key, Summary: sum, Empty: sum.IsEmpty(), Message: reply.Report(sum)}, nil
}

// Export renders actor's store as an xlsx workbook.
func (s *LedgerService) Export(ctx context.Context, actor core.Identity) (ExportResult, error) {
	key, err := s.resolve(ctx, log.OpExport, actor)
	if err != nil {
		return ExportResult{}, err
	}
	doc, err := s.ledger.Export(ctx, key)
	if err != nil {
		log.LogCommandError(ctx, "Failed to export store", err, log.OpExport, actor.String(), key.String())
		return ExportResult{}, err
	}
	data, err := export.XLSX(doc)
	if err != nil {
		return ExportResult{}, fmt.Errorf("render export: %w", err)
	}
	return ExportResult{
		StoreKey:    key,
		FileName:    export.FileName(key),
		ContentType: export.ContentType,
		Data:        data,
	}, nil
}

func (s *LedgerService) Undo(ctx context.Context, actor core.Identity) (UndoResult, error) {
	key, err := s.resolve(ctx, log.OpUndo, actor)
	if err != nil {
		return UndoResult{}, err
	}
	res, err := s.ledger.UndoLast(ctx, key)
	if err != nil {
		log.LogCommandError(ctx, "Failed to undo movement", err, log.OpUndo, actor.String(), key.String())
		return UndoResult{}, err
	}

	out := UndoResult{StoreKey: key, Removed: res.Removed, Balance: res.Balance, Message: reply.Undo(res.Removed)}
	if res.Removed {
		m := res.Movement
		out.Movement = &m
		e := events.MovementEvent(events.KindMovementUndone, key, m, res.Balance)
		e.Principal = actor
		s.publish(ctx, e)
	}
	return out, nil
}

func (s *LedgerService) Reset(ctx context.Context, actor core.Identity) (ResetResult, error) {
	key, err := s.resolve(ctx, log.OpReset, actor)
	if err != nil {
		return ResetResult{}, err
	}
	if err := s.ledger.Reset(ctx, key); err != nil {
		log.LogCommandError(ctx, "Failed to reset store", err, log.OpReset, actor.String(), key.String())
		return ResetResult{}, err
	}
	s.publish(ctx, events.ResetEvent(key, actor))
	return ResetResult{StoreKey: key, Message: reply.ResetDone}, nil
}

// SetAdmin toggles target's admin membership on behalf of actor.
func (s *LedgerService) SetAdmin(ctx context.Context, actor core.Identity, rawTarget string) (SetAdminResult, error) {
	target, err := core.ParseIdentity(rawTarget)
	if err != nil {
		return SetAdminResult{}, err
	}
	if err := s.refreshAdmins(ctx, log.OpSetAdmin, actor); err != nil {
		return SetAdminResult{}, err
	}
	res, err := s.admins.Grant(ctx, actor, target)
	if err != nil {
		return SetAdminResult{}, err
	}
	s.publish(ctx, events.AdminEvent(res.Granted, actor, target))
	return SetAdminResult{Target: target, Granted: res.Granted, Message: reply.Granted(target, res.Granted)}, nil
}

// AdminList is reserved to admins.
func (s *LedgerService) AdminList(ctx context.Context, actor core.Identity) (AdminListResult, error) {
	if err := s.refreshAdmins(ctx, log.OpAdminList, actor); err != nil {
		return AdminListResult{}, err
	}
	if !s.admins.IsAdmin(actor) {
		return AdminListResult{}, fmt.Errorf("%w: %s is not an admin", core.ErrUnauthorized, actor)
	}
	admins := s.admins.List()
	return AdminListResult{Admins: admins, Message: reply.AdminList(admins)}, nil
}

func (s *LedgerService) Help() string {
	return reply.Help()
}

// publish never fails the command: the mutation is already committed.
func (s *LedgerService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventID, e.ID,
			log.FieldEventKind, string(e.Kind),
			log.FieldError, err)
	}
}
