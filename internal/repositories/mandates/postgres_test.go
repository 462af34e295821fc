package mandates

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dverhagen/twikeysync/internal/common"
	"github.com/dverhagen/twikeysync/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func mandateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"mndt_id", "state", "partner_id", "contract_id", "debtor_name",
		"debtor_email", "iban", "bic", "sign_url", "reason", "updated_at",
	}).AddRow("M1", "signed", int64(42), "tmpl-1", "Ada Lovelace",
		"ada@example.test", "BE68539007547034", "GKCCBEBB", "https://sign.example.test/M1", "", time.Now())
}

func TestGet_ReturnsMandate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM mandates WHERE mndt_id=\$1`).
		WithArgs("M1").
		WillReturnRows(mandateRows())

	m, err := repo.Get(context.Background(), "M1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MndtID != "M1" || m.State != models.MandateStateSigned {
		t.Fatalf("unexpected mandate: %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM mandates WHERE mndt_id=\$1 FOR UPDATE`).
		WithArgs("M1").
		WillReturnRows(mandateRows())

	if _, err := repo.GetForUpdate(context.Background(), "M1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM mandates WHERE mndt_id=\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpsert_InsertsOrRefreshes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`INSERT INTO mandates .* ON CONFLICT \(mndt_id\) .*DO UPDATE SET`)
	mock.ExpectExec(q.String()).
		WithArgs("M1", models.MandateStateSigned, int64(42), "tmpl-1", "Ada Lovelace",
			"ada@example.test", "BE68539007547034", "GKCCBEBB", "https://sign.example.test/M1", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.Mandate{
		MndtID:      "M1",
		State:       models.MandateStateSigned,
		PartnerID:   42,
		ContractID:  "tmpl-1",
		DebtorName:  "Ada Lovelace",
		DebtorEmail: "ada@example.test",
		IBAN:        "BE68539007547034",
		BIC:         "GKCCBEBB",
		SignURL:     "https://sign.example.test/M1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetState_NotFoundWhenNoRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE mandates SET state=\$2, reason=\$3, updated_at=now\(\) WHERE mndt_id=\$1`).
		WithArgs("missing", models.MandateStateCanceled, "customer-request").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetState(context.Background(), "missing", models.MandateStateCanceled, "customer-request")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
