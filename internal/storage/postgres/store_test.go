package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/pixelcredit/internal/domain"
	"github.com/davidbz/pixelcredit/internal/storage/postgres"
)

// openStore connects to POSTGRES_TEST_DSN and resets the schema.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, table := range []string{"reservation_images", "credit_transactions", "credit_reservations", "user_credits", "pricing_coefficients", "service_costs"} {
		_, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)
		require.NoError(t, err)
	}

	store := postgres.New(pool)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Init(ctx))
	return store
}

func TestStore_HistoryAndLatestChange(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	latest, err := store.LatestChange(ctx)
	require.NoError(t, err)
	require.True(t, latest.IsZero())

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })

	_, err = store.RecordCost(ctx, domain.ServiceDallE3StandardSquare, 0.04, domain.CostSourceManual, "")
	require.NoError(t, err)
	_, err = store.RecordCost(ctx, domain.ServiceDallE3StandardSquare, 0.05, domain.CostSourceAPIAuto, "")
	require.NoError(t, err)
	_, err = store.RecordCoefficient(ctx, 4.0, "default", "")
	require.NoError(t, err)

	history, err := store.CostHistory(ctx, domain.ServiceDallE3StandardSquare)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, history[1].ValidFrom, *history[0].ValidTo)
	require.True(t, history[1].ValidFrom.After(history[0].ValidFrom))

	current, err := store.CurrentCost(ctx, domain.ServiceDallE3StandardSquare)
	require.NoError(t, err)
	require.InDelta(t, 0.05, current.CostUSD, 1e-12)

	coefficient, err := store.CurrentCoefficient(ctx)
	require.NoError(t, err)
	require.InDelta(t, 4.0, coefficient.Coefficient, 1e-12)

	latest, err = store.LatestChange(ctx)
	require.NoError(t, err)
	require.False(t, latest.Before(history[1].ValidFrom))
}

func TestStore_ReserveSettleRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Grant(ctx, "pg-user", 40, "")
	require.NoError(t, err)

	reservation := &domain.Reservation{
		ID:              uuid.NewString(),
		UserID:          "pg-user",
		OwnerKind:       domain.OwnerJob,
		OwnerID:         "job-1",
		Provider:        domain.ProviderFlux,
		ServiceID:       domain.ServiceFluxStandard,
		Images:          2,
		CreditsPerImage: 10,
		ReservedCredits: 20,
		Status:          domain.ReservationOpen,
		CreatedAt:       time.Now().UTC(),
	}
	_, err = store.Reserve(ctx, reservation)
	require.NoError(t, err)

	_, err = store.Reserve(ctx, &domain.Reservation{
		ID: uuid.NewString(), UserID: "pg-user", OwnerKind: domain.OwnerJob, OwnerID: "job-2",
		Provider: domain.ProviderFlux, ServiceID: domain.ServiceFluxStandard,
		Images: 3, CreditsPerImage: 10, ReservedCredits: 30,
		Status: domain.ReservationOpen, CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	refund, err := store.Settle(ctx, domain.Settlement{
		ReservationID: reservation.ID,
		UserID:        "pg-user",
		FinalStatus:   domain.ReservationSettled,
		Charges: []domain.ImageCharge{
			{Index: 0, Status: domain.ImageCompleted, EstimatedCredits: 10, CreditsSpent: 10},
			{Index: 1, Status: domain.ImageFailed, EstimatedCredits: 10},
		},
		ChargedCredits: 10,
		RefundCredits:  10,
		ClosedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), refund.BalanceAfter)

	charges, err := store.Charges(ctx, reservation.ID)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	require.Equal(t, domain.ImageFailed, charges[1].Status)

	_, err = store.Settle(ctx, domain.Settlement{ReservationID: reservation.ID, FinalStatus: domain.ReservationSettled})
	require.ErrorIs(t, err, domain.ErrReservationClosed)

	txs, err := store.Transactions(ctx, "pg-user", 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, domain.TransactionRefund, txs[0].Type)
}

func TestStore_ReserveRejectsNonPositiveCredits(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, &domain.Reservation{
		ID: uuid.NewString(), UserID: "pg-mallory", OwnerKind: domain.OwnerJob, OwnerID: "job-wrap",
		Provider: domain.ProviderDallE3, ServiceID: domain.ServiceDallE3StandardSquare,
		Images: 1, CreditsPerImage: 16, ReservedCredits: -7246744073709551616,
		Status: domain.ReservationOpen, CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidReservation)

	balance, err := store.Balance(ctx, "pg-mallory")
	require.NoError(t, err)
	require.Zero(t, balance)
}
