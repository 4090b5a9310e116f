package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"promo-studio-server/modules/common/config"
)

const maxAttempts = 3

var (
	ErrInsufficient = errors.New("insufficient credits")
	ErrContention   = errors.New("credit balance changed concurrently")
)

// Store - user_credits 접근 (database.Client 가 구현)
type Store interface {
	GetCredits(ctx context.Context, userID string) (int, error)
	CompareAndSetCredits(ctx context.Context, userID string, expected, next int) (bool, error)
	SetCredits(ctx context.Context, userID string, credits int) error
}

// Ledger - 이미지 1장당 1 크레딧 차감 정책
//
//	reserve  : 잔액 확인 직후 CAS 로 선차감, 실패 시 환불
//	deferred : 모든 작업 성공 후 마지막에 차감 (차감 실패는 로그만)
type Ledger struct {
	mode string
}

func NewLedger(mode string) *Ledger {
	if mode != config.CreditModeDeferred {
		mode = config.CreditModeReserve
	}
	return &Ledger{mode: mode}
}

func (l *Ledger) Mode() string {
	return l.mode
}

// Reservation - 한 번의 생성 요청에 대한 크레딧 처리 상태
type Reservation struct {
	store    Store
	userID   string
	mode     string
	balance  int // 요청 시작 시점 잔액
	reserved bool
	done     bool
}

// Begin - 잔액 확인 (+ reserve 모드면 선차감)
func (l *Ledger) Begin(ctx context.Context, store Store, userID string) (*Reservation, error) {
	balance, err := store.GetCredits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credits: %w", err)
	}
	if balance < 1 {
		return nil, ErrInsufficient
	}

	r := &Reservation{store: store, userID: userID, mode: l.mode, balance: balance}
	if l.mode == config.CreditModeDeferred {
		return r, nil
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := store.CompareAndSetCredits(ctx, userID, balance, balance-1)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve credit: %w", err)
		}
		if ok {
			r.balance = balance
			r.reserved = true
			log.Info().Str("user_id", userID).Msgf("💰 [Credit] Reserved 1 credit: %d → %d", balance, balance-1)
			return r, nil
		}

		log.Warn().Str("user_id", userID).Msgf("⚠️  [Credit] Balance changed during reserve (attempt %d/%d)", attempt, maxAttempts)
		balance, err = store.GetCredits(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch credits: %w", err)
		}
		if balance < 1 {
			return nil, ErrInsufficient
		}
	}
	return nil, ErrContention
}

// Commit - 성공 확정 후 남은 크레딧 반환
func (r *Reservation) Commit(ctx context.Context) int {
	remaining := r.balance - 1
	if r.done {
		return remaining
	}
	r.done = true

	if r.mode == config.CreditModeDeferred {
		if err := r.store.SetCredits(context.WithoutCancel(ctx), r.userID, remaining); err != nil {
			// 이미지는 이미 저장됨, 차감 실패는 로그만 남김
			log.Error().Err(err).Str("user_id", r.userID).Msg("❌ [Credit] Failed to deduct credit")
		} else {
			log.Info().Str("user_id", r.userID).Msgf("💰 [Credit] Deducted 1 credit: %d → %d", r.balance, remaining)
		}
	}
	return remaining
}

// Rollback - reserve 모드에서 선차감한 크레딧 환불 (deferred 는 no-op)
func (r *Reservation) Rollback(ctx context.Context) {
	if r.done {
		return
	}
	r.done = true
	if !r.reserved {
		return
	}

	// 요청이 취소됐어도 환불은 진행
	ctx = context.WithoutCancel(ctx)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := r.store.GetCredits(ctx, r.userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", r.userID).Msg("❌ [Credit] Refund failed: could not read balance")
			return
		}
		ok, err := r.store.CompareAndSetCredits(ctx, r.userID, current, current+1)
		if err != nil {
			log.Error().Err(err).Str("user_id", r.userID).Msg("❌ [Credit] Refund failed")
			return
		}
		if ok {
			log.Info().Str("user_id", r.userID).Msgf("↩️  [Credit] Refunded 1 credit: %d → %d", current, current+1)
			return
		}
	}
	log.Error().Str("user_id", r.userID).Msg("❌ [Credit] Refund failed: balance kept changing")
}
