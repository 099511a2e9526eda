package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "reference", "email", "amount", "currency", "status", "issued_code", "code_canonical"})
}

func TestPaymentCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "payment_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	rec := &models.PaymentRecord{Reference: "R1", Provider: "paystack", Email: "a@x.com", Amount: 500000, Currency: "NGN"}
	err := repo.Create(context.Background(), rec)
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreate_DuplicateReference(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "payment_records"`)).
		WillReturnError(gorm.ErrDuplicatedKey)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.PaymentRecord{Reference: "R1", Email: "a@x.com", Amount: 1})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateReference)
}

func TestFindByReference_Unknown(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payment_records" WHERE reference = $1`)).
		WillReturnRows(paymentRows())

	rec, err := repo.FindByReference(context.Background(), "nope")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperrors.ErrUnknownReference)
}

func TestLockByReference_UsesForUpdate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE reference = \$1 .*FOR UPDATE`).
		WillReturnRows(paymentRows().AddRow(1, "R1", "a@x.com", 500000, "NGN", "pending", nil, false))

	rec, err := repo.LockByReference(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, rec.Status)
}

func TestMarkSuccess_WinsConditionalUpdate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)
	candidateID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payment_records" SET .* WHERE reference = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payment_records"`)).
		WillReturnRows(paymentRows().AddRow(1, "R1", "a@x.com", 500000, "NGN", "success", "BECE250102003", true))

	rec, err := repo.MarkSuccess(context.Background(), "R1", "BECE250102003", true, candidateID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, rec.Status)
	assert.Equal(t, "BECE250102003", rec.Code())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSuccess_AlreadyFinalized(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payment_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec, err := repo.MarkSuccess(context.Background(), "R1", "BECE25X", false, uuid.New())
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)
}

func TestMarkSuccess_DuplicateCodeIsSequenceConflict(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payment_records" SET`)).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_payment_records_issued_code" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	_, err := repo.MarkSuccess(context.Background(), "R1", "BECE25X", true, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrSequenceAllocationConflict)
}

func TestMarkFailed_AlreadyFinalized(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payment_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.MarkFailed(context.Background(), "R1", models.FailureReasonGateway, "failed")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)
}

func TestListPending(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormPaymentRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payment_records" WHERE status = $1 AND created_at < $2 AND created_at > $3`)).
		WillReturnRows(paymentRows().
			AddRow(1, "R1", "a@x.com", 500000, "NGN", "pending", nil, false).
			AddRow(2, "R2", "b@x.com", 500000, "NGN", "pending", nil, false))

	now := time.Now()
	recs, err := repo.ListPending(context.Background(), now.Add(-15*time.Minute), now.Add(-72*time.Hour), 50)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSequenceNext(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormSequenceRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO school_sequences`)).
		WithArgs(7, 7).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(12))

	next, err := repo.Next(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), next)
}

func TestCandidateMarkPaid_AlreadyPaid(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCandidateRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "candidates" SET .* WHERE id = \$\d+ AND payment_status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.MarkPaid(context.Background(), uuid.New(), "BECE25X", "R1")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)
}

func TestCandidateFindUnpaidByEmail_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCandidateRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "candidates" WHERE email = $1 AND payment_status = $2 AND payment_reference IS NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := repo.FindUnpaidByEmail(context.Background(), "a@x.com")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCandidateFindByRegistrationNumber(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCandidateRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "candidates" WHERE registration_number = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email", "school_id", "registration_number"}).
			AddRow("Ada Obi", "a@x.com", 45, "BECE2507030450012"))

	c, err := repo.FindByRegistrationNumber(context.Background(), "BECE2507030450012")
	require.NoError(t, err)
	assert.Equal(t, "Ada Obi", c.Name)
	assert.Equal(t, 45, c.SchoolID)
	require.NotNil(t, c.RegistrationNumber)
	assert.Equal(t, "BECE2507030450012", *c.RegistrationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitOfWork_RollsBackWhenFnFails(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	uow := repository.NewGormUnitOfWork(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "payment_records" WHERE reference = $1`)).
		WillReturnRows(paymentRows().AddRow(1, "R1", "a@x.com", 500000, "NGN", "pending", nil, false))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payment_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := uow.Transaction(context.Background(), func(st repository.TxStores) error {
		if _, err := st.Payments.LockByReference(context.Background(), "R1"); err != nil {
			return err
		}
		_, err := st.Payments.MarkFailed(context.Background(), "R1", models.FailureReasonGateway, "failed")
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceFindSchool(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormReferenceRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "schools" WHERE id = $1 AND lga_id = $2 AND state_id = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "state_id", "lga_id", "name"}).AddRow(45, 20, 3, "Government Secondary School, Kano"))

	s, err := repo.FindSchool(context.Background(), 20, 3, 45)
	require.NoError(t, err)
	assert.Equal(t, "Government Secondary School, Kano", s.Name)
}
