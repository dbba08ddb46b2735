package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/suite"
)

type PostgresRepositoryTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo *PostgresRepository
	ctx  context.Context
	biz  uuid.UUID
}

func (s *PostgresRepositoryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	s.Require().NoError(err)
	s.mock = mock
	s.repo = NewPostgresRepository(mock)
	s.ctx = context.Background()
	s.biz = uuid.New()
}

func (s *PostgresRepositoryTestSuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestPostgresRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresRepositoryTestSuite))
}

func (s *PostgresRepositoryTestSuite) TestPaymentTotalsGroupsByMonthAndCurrency() {
	w := MonthWindow(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	s.mock.ExpectQuery(`GROUP BY 1, 2`).
		WithArgs(s.biz, w.From, w.To).
		WillReturnRows(pgxmock.NewRows([]string{"month", "currency", "sum", "count"}).
			AddRow(w.From, "NGN", "1200.50", 3).
			AddRow(w.From, "USD", "19.99", 1))

	totals, err := s.repo.PaymentTotals(s.ctx, s.biz, w)
	s.Require().NoError(err)
	s.Require().Len(totals, 2)
	s.Equal("1200.5", totals[0].Amount.String())
	s.Equal(3, totals[0].Count)
	s.Equal("USD", totals[1].Currency)
}

func (s *PostgresRepositoryTestSuite) TestCountCustomersWindow() {
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM business_customers WHERE business_id = \$1$`).
		WithArgs(s.biz).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	w := MonthWindow(time.Now())
	s.mock.ExpectQuery(`created_at >= \$2 AND created_at < \$3`).
		WithArgs(s.biz, w.From, w.To).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.repo.CountCustomers(s.ctx, s.biz, nil)
	s.Require().NoError(err)
	s.Equal(7, n)
	n, err = s.repo.CountCustomers(s.ctx, s.biz, &w)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *PostgresRepositoryTestSuite) TestRecentInvoicesBindsFilter() {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`i.business_id = \$1 AND i.created_at >= \$2 AND \(i.invoice_number ILIKE \$3 OR c.name ILIKE \$3\)\s+ORDER BY i.created_at DESC, i.id DESC LIMIT \$4`).
		WithArgs(s.biz, from, "%ada%", 5).
		WillReturnRows(pgxmock.NewRows([]string{"invoice_number", "name", "amount", "currency", "created_at"}).
			AddRow("INV-000123", "Ada", "250.00", "NGN", from))

	rows, err := s.repo.RecentInvoices(s.ctx, ActivityFilter{BusinessID: s.biz, From: &from, Search: " ada ", Limit: 5})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("250.00 NGN", rows[0].Amount.String())
	s.Equal("Ada", rows[0].CustomerName)
}

func (s *PostgresRepositoryTestSuite) TestCountActivitiesSharesArguments() {
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`c.created_at < \$2.+i.created_at < \$2.+p.created_at < \$2`).
		WithArgs(s.biz, to).
		WillReturnRows(pgxmock.NewRows([]string{"c", "i", "p"}).AddRow(4, 3, 2))

	counts, err := s.repo.CountActivities(s.ctx, ActivityFilter{BusinessID: s.biz, To: &to})
	s.Require().NoError(err)
	s.Equal(ActivityCounts{Customers: 4, Invoices: 3, Payments: 2}, counts)
}

func (s *PostgresRepositoryTestSuite) TestListTransactionsForCustomer() {
	customer := uuid.New()
	paymentID, invoiceID := uuid.New(), uuid.New()
	paidAt := time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`AND i.customer_id = \$2\s+ORDER BY p.payment_date DESC, p.created_at DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs(s.biz, customer, 20, 40).
		WillReturnRows(pgxmock.NewRows([]string{"id", "invoice_id", "invoice_number", "customer_id", "name", "amount", "currency", "payment_method", "payment_date", "notes"}).
			AddRow(paymentID, invoiceID, "INV-000777", customer, "Ada", "60.00", "USD", "card", paidAt, ""))

	txns, err := s.repo.ListTransactions(s.ctx, TransactionQuery{BusinessID: s.biz, CustomerID: &customer}, 20, 40)
	s.Require().NoError(err)
	s.Require().Len(txns, 1)
	s.Equal("card", txns[0].Method)
	s.Equal(paidAt, txns[0].PaymentDate)
}

func (s *PostgresRepositoryTestSuite) TestBusinessCurrencyNotFound() {
	s.mock.ExpectQuery(`FROM business_profiles WHERE id = \$1`).
		WithArgs(s.biz).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.repo.BusinessCurrency(s.ctx, s.biz)
	s.ErrorIs(err, ErrNotFound)
}
