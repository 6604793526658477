//go:build integration
// +build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"card-custody-service/internal/models"
)

// RepositoryTestSuite exercises the conflict and lifecycle guards against a
// real database, since they live in transactional SQL the mocks never run.
type RepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	cards       *CardRepository
	engagements *EngagementRepository
	withdrawals *WithdrawalRepository

	worker  *models.Actor
	card    *models.Card
	targetA uuid.UUID
	targetB uuid.UUID
}

func (s *RepositoryTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=custody_test port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		s.T().Fatalf("Failed to connect to database: %v", err)
	}
	s.db = db

	err = s.db.AutoMigrate(
		&models.Actor{},
		&models.Institution{},
		&models.Account{},
		&models.Target{},
		&models.Card{},
		&models.Engagement{},
		&models.WithdrawalRequest{},
		&models.CustodyAuditLog{},
	)
	if err != nil {
		s.T().Fatalf("Failed to run migrations: %v", err)
	}

	s.cards = NewCardRepository(s.db)
	s.engagements = NewEngagementRepository(s.db)
	s.withdrawals = NewWithdrawalRepository(s.db)
}

// SetupTest gives every test a fresh card, worker and two targets
func (s *RepositoryTestSuite) SetupTest() {
	s.worker = &models.Actor{
		ID:     uuid.New(),
		Email:  "worker-" + uuid.New().String()[:8] + "@example.com",
		Name:   "Test Worker",
		Role:   models.RoleWorker,
		Status: models.ActorStatusActive,
	}
	s.Require().NoError(s.db.Create(s.worker).Error)

	expires := time.Now().AddDate(1, 0, 0)
	s.card = &models.Card{
		ID:           uuid.New(),
		AccountID:    uuid.New(),
		MaskedNumber: "**** **** **** 1234",
		BIN:          "411111",
		Status:       models.CardStatusAvailable,
		ExpiresAt:    &expires,
	}
	s.Require().NoError(s.db.Create(s.card).Error)

	s.targetA = uuid.New()
	s.targetB = uuid.New()
}

func (s *RepositoryTestSuite) openEngagement(targetID uuid.UUID) *models.Engagement {
	engagement := &models.Engagement{
		ID:       uuid.New(),
		WorkerID: s.worker.ID,
		CardID:   s.card.ID,
		TargetID: targetID,
		Amount:   100,
	}
	s.Require().NoError(s.engagements.OpenEngagement(context.Background(), engagement))
	return engagement
}

// An engagement opened after the caller's unlocked read flips the card to
// active; the assignment must then fail its own in-transaction check rather
// than move the card back to assigned under a live engagement.
func (s *RepositoryTestSuite) TestAssignCard_RejectsActiveCard() {
	s.openEngagement(s.targetA)

	var card models.Card
	s.Require().NoError(s.db.Where("id = ?", s.card.ID).First(&card).Error)
	s.Require().Equal(models.CardStatusActive, card.Status)

	_, err := s.cards.AssignCard(context.Background(), s.card.ID, s.worker.ID, s.targetB, nil)

	var transitionErr *models.TransitionError
	s.Require().ErrorAs(err, &transitionErr)
	s.Equal(models.CardStatusActive, transitionErr.Current)
	s.Equal(models.CardStatusAssigned, transitionErr.Attempted)

	s.Require().NoError(s.db.Where("id = ?", s.card.ID).First(&card).Error)
	s.Equal(models.CardStatusActive, card.Status)
	s.Nil(card.AssignedTo)
}

func (s *RepositoryTestSuite) TestAssignCard_SecondTargetWhileFree() {
	_, err := s.cards.AssignCard(context.Background(), s.card.ID, s.worker.ID, s.targetA, nil)
	s.Require().NoError(err)

	var card models.Card
	s.Require().NoError(s.db.Where("id = ?", s.card.ID).First(&card).Error)
	s.Equal(models.CardStatusAssigned, card.Status)
}

func (s *RepositoryTestSuite) TestOpenEngagement_SameTargetConflicts() {
	s.openEngagement(s.targetA)

	second := &models.Engagement{
		ID:       uuid.New(),
		WorkerID: s.worker.ID,
		CardID:   s.card.ID,
		TargetID: s.targetA,
		Amount:   50,
	}
	err := s.engagements.OpenEngagement(context.Background(), second)
	s.Require().ErrorIs(err, ErrCardNotFree)
}

// A settled engagement keeps the (card, target) pair occupied as long as its
// withdrawal is still moving money; approved or blocked withdrawals free it.
func (s *RepositoryTestSuite) TestCardFreeForTarget_InFlightWithdrawal() {
	ctx := context.Background()
	engagement := s.openEngagement(s.targetA)

	_, _, err := s.engagements.CloseEngagement(ctx, engagement.ID, models.EngagementStatusCompleted, nil)
	s.Require().NoError(err)

	free, err := s.engagements.IsCardFree(ctx, s.card.ID, s.targetA)
	s.Require().NoError(err)
	s.True(free)

	withdrawal := &models.WithdrawalRequest{
		ID:           uuid.New(),
		EngagementID: engagement.ID,
		Amount:       100,
		Status:       models.WithdrawalStatusPending,
	}
	s.Require().NoError(s.db.Create(withdrawal).Error)

	free, err = s.engagements.IsCardFree(ctx, s.card.ID, s.targetA)
	s.Require().NoError(err)
	s.False(free, "pending withdrawal must keep the pair occupied")

	// A different target is unaffected
	free, err = s.engagements.IsCardFree(ctx, s.card.ID, s.targetB)
	s.Require().NoError(err)
	s.True(free)

	s.Require().NoError(s.db.Model(withdrawal).Update("status", models.WithdrawalStatusApproved).Error)
	free, err = s.engagements.IsCardFree(ctx, s.card.ID, s.targetA)
	s.Require().NoError(err)
	s.True(free, "approved withdrawal releases the pair")

	s.Require().NoError(s.db.Model(withdrawal).Update("status", models.WithdrawalStatusBlocked).Error)
	free, err = s.engagements.IsCardFree(ctx, s.card.ID, s.targetA)
	s.Require().NoError(err)
	s.True(free, "blocked withdrawal releases the pair")
}

func (s *RepositoryTestSuite) TestCardFreeForTarget_EachInFlightStatus() {
	ctx := context.Background()

	for _, status := range models.InFlightWithdrawalStatuses {
		engagement := s.openEngagement(s.targetA)
		_, _, err := s.engagements.CloseEngagement(ctx, engagement.ID, models.EngagementStatusCompleted, nil)
		s.Require().NoError(err)

		withdrawal := &models.WithdrawalRequest{
			ID:           uuid.New(),
			EngagementID: engagement.ID,
			Amount:       100,
			Status:       status,
		}
		s.Require().NoError(s.db.Create(withdrawal).Error)

		free, err := s.engagements.IsCardFree(ctx, s.card.ID, s.targetA)
		s.Require().NoError(err)
		s.False(free, "status %s must keep the pair occupied", status)

		s.Require().NoError(s.db.Delete(withdrawal).Error)
		s.Require().NoError(s.db.Delete(engagement).Error)
	}
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
