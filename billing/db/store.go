package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTransactionNotFound = errors.New("transaction not found")
var ErrNoAdminMember = errors.New("no admin team member found")

// Store is the gorm-backed persistence used by the callback processor and
// the checkout flow.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// DefaultStore returns a Store over the process-wide connection.
func DefaultStore() *Store {
	return &Store{db: DB}
}

func (s *Store) CreatePendingTransaction(ctx context.Context, tx *Transaction) error {
	tx.Status = StatusPending
	if tx.Currency == "" {
		tx.Currency = "IDR"
	}
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *Store) FindByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	var tx Transaction
	err := s.db.WithContext(ctx).First(&tx, "merchant_order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdateStatusIf flips a transaction's status only if it still has the
// expected one. The conditional WHERE is the compare-and-swap that keeps
// concurrent callbacks from both applying; RowsAffected == 0 means the row
// moved first.
func (s *Store) UpdateStatusIf(ctx context.Context, orderID, expected, next, gatewayRef string) (bool, error) {
	updates := map[string]any{"status": next}
	if gatewayRef != "" {
		updates["gateway_reference"] = gatewayRef
	}

	res := s.db.WithContext(ctx).Model(&Transaction{}).
		Where("merchant_order_id = ? AND status = ?", orderID, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendLog writes one audit row. Callers treat failures as warnings, not as
// reasons to unwind the transition.
func (s *Store) AppendLog(ctx context.Context, entry TransactionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

// FirstAdminUserID is the degraded-mode lookup for callbacks whose order id
// resolves to nothing. It misattributes payments when more than one team
// exists, so callers log and count every use.
func (s *Store) FirstAdminUserID(ctx context.Context) (uint, error) {
	var member TeamMember
	err := s.db.WithContext(ctx).Where("role = ?", "admin").Order("id").First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNoAdminMember
	}
	if err != nil {
		return 0, err
	}
	return member.UserID, nil
}

// ActivatePlan upserts the team's subscription and flips the team plan inside
// one locked transaction.
func (s *Store) ActivatePlan(ctx context.Context, userID uint, planID, gatewayRef string, periodStart, periodEnd time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member TeamMember
		if err := tx.Where("user_id = ?", userID).First(&member).Error; err != nil {
			return err
		}

		var team Team
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&team, member.TeamID).Error; err != nil {
			return err
		}

		var sub Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("team_id = ?", team.ID).First(&sub).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub = Subscription{
				TeamID:           team.ID,
				Plan:             planID,
				Status:           "active",
				PeriodStart:      periodStart,
				PeriodEnd:        periodEnd,
				Gateway:          "faspay",
				GatewayReference: gatewayRef,
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			sub.Plan = planID
			sub.Status = "active"
			sub.PeriodStart = periodStart
			sub.PeriodEnd = periodEnd
			sub.Gateway = "faspay"
			sub.GatewayReference = gatewayRef
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
		}

		team.Plan = planID
		team.BillingStatus = "active"
		return tx.Save(&team).Error
	})
}

// FlagReversal marks the team's billing state after a reversal callback. The
// period is left untouched for ops to settle manually.
func (s *Store) FlagReversal(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member TeamMember
		if err := tx.Where("user_id = ?", userID).First(&member).Error; err != nil {
			return err
		}
		return tx.Model(&Team{}).Where("id = ?", member.TeamID).
			Update("billing_status", "reversed").Error
	})
}
