package invoices

import (
	"context"
	"database/sql"
	"errors"
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

func invoiceRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "number", "status", "amount", "date", "due_date", "partner_id",
		"remote_id", "remote_url", "contract_id", "payment_note", "send_to_remote", "updated_at",
	}).AddRow(int64(42), "INV/2026/0042", "booked", 100.5, now, now.Add(30*24*time.Hour),
		int64(7), "inv-uuid-1", "https://app.example.test/acme/inv-uuid-1", "tmpl-1", "", true, now)
}

func TestGet_ReturnsInvoice(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM invoices WHERE id=\$1`).
		WithArgs(int64(42)).
		WillReturnRows(invoiceRows())

	inv, err := repo.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ID != 42 || inv.Status != models.InvoiceStatusBooked {
		t.Fatalf("unexpected invoice: %+v", inv)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM invoices WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(invoiceRows())

	if _, err := repo.GetForUpdate(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_ReturnsAssignedID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO invoices .* RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(43)))

	id, err := repo.Create(context.Background(), &models.Invoice{
		Number: "INV/2026/0043",
		Status: models.InvoiceStatusDraft,
		Amount: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 43 {
		t.Fatalf("want id 43, got %d", id)
	}
}

func TestUpdate_NotFoundWhenNoRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE invoices SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Invoice{ID: 999})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE invoices SET`).
		WillReturnError(errors.New("db is down"))

	err := repo.Update(context.Background(), &models.Invoice{ID: 42})
	if err == nil {
		t.Fatal("expected error")
	}
}
