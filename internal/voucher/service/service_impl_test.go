package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shiftbd/agenthub/internal/voucher/domain"
	"github.com/shiftbd/agenthub/internal/voucher/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupVoucherService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:vouchers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Voucher{}))

	// One connection keeps concurrent writers queueing instead of
	// tripping over sqlite's table lock.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func TestIssueCreatesVoucher(t *testing.T) {
	svc, db, node := setupVoucherService(t)
	reportID := node.Generate()

	voucher, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "MerchantIssue",
		SourceReportID:     reportID,
		DiscountPercentage: 10,
		ValidFor:           30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.NotEmpty(t, voucher.Code)
	require.Equal(t, 10, voucher.DiscountPercentage)
	require.False(t, voucher.IsUsed)
	require.NotNil(t, voucher.ValidUntil)

	var count int64
	require.NoError(t, db.Model(&domain.Voucher{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestIssueIsIdempotentPerSource(t *testing.T) {
	svc, db, node := setupVoucherService(t)
	reportID := node.Generate()

	first, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "PenaltyReport",
		SourceReportID:     reportID,
		DiscountPercentage: 5,
	})
	require.NoError(t, err)

	second, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "PenaltyReport",
		SourceReportID:     reportID,
		DiscountPercentage: 5,
	})
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)

	var count int64
	require.NoError(t, db.Model(&domain.Voucher{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestIssueConcurrentExactlyOnce(t *testing.T) {
	svc, db, node := setupVoucherService(t)
	reportID := node.Generate()

	const workers = 8
	codes := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			voucher, err := svc.Issue(context.Background(), domain.IssueRequest{
				SourceReportKind:   "MerchantIssue",
				SourceReportID:     reportID,
				DiscountPercentage: 10,
			})
			codes[slot] = voucher.Code
			errs[slot] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, codes[0], codes[i])
	}

	var count int64
	require.NoError(t, db.Model(&domain.Voucher{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestIssueValidation(t *testing.T) {
	svc, _, node := setupVoucherService(t)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "",
		SourceReportID:     node.Generate(),
		DiscountPercentage: 10,
	})
	require.ErrorIs(t, err, domain.ErrInvalidSource)

	_, err = svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "MerchantIssue",
		SourceReportID:     node.Generate(),
		DiscountPercentage: 0,
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)

	_, err = svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "MerchantIssue",
		SourceReportID:     node.Generate(),
		DiscountPercentage: 101,
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)
}

func TestRedeemExactlyOnce(t *testing.T) {
	svc, _, node := setupVoucherService(t)

	voucher, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "MerchantIssue",
		SourceReportID:     node.Generate(),
		DiscountPercentage: 10,
	})
	require.NoError(t, err)

	redeemed, err := svc.Redeem(context.Background(), domain.RedeemRequest{Code: voucher.Code})
	require.NoError(t, err)
	require.True(t, redeemed.IsUsed)
	require.NotNil(t, redeemed.UsedAt)

	_, err = svc.Redeem(context.Background(), domain.RedeemRequest{Code: voucher.Code})
	require.ErrorIs(t, err, domain.ErrAlreadyUsed)
}

func TestRedeemConcurrentSingleWinner(t *testing.T) {
	svc, _, node := setupVoucherService(t)

	voucher, err := svc.Issue(context.Background(), domain.IssueRequest{
		SourceReportKind:   "PenaltyReport",
		SourceReportID:     node.Generate(),
		DiscountPercentage: 5,
	})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = svc.Redeem(context.Background(), domain.RedeemRequest{Code: voucher.Code})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrAlreadyUsed)
		}
	}
	require.Equal(t, 1, succeeded)
}

func TestRedeemExpired(t *testing.T) {
	svc, db, node := setupVoucherService(t)

	past := time.Now().UTC().Add(-time.Hour)
	voucher := domain.Voucher{
		ID:                 node.Generate(),
		Code:               "AGV-EXPIRED",
		DiscountPercentage: 10,
		SourceReportKind:   "MerchantIssue",
		SourceReportID:     node.Generate(),
		ValidUntil:         &past,
		CreatedAt:          past.Add(-time.Hour),
	}
	require.NoError(t, db.Create(&voucher).Error)

	_, err := svc.Redeem(context.Background(), domain.RedeemRequest{Code: "AGV-EXPIRED"})
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _, _ := setupVoucherService(t)

	_, err := svc.Redeem(context.Background(), domain.RedeemRequest{Code: "AGV-NOPE"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Redeem(context.Background(), domain.RedeemRequest{Code: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidCode)
}
