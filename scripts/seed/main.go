package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizbilling/internal/app"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/money"
)

var (
	demoBusinessID = uuid.MustParse("6f1c2a5e-0b9d-4c61-9a58-2d3f8e7b1c01")
	demoCustomers  = []struct {
		id       uuid.UUID
		name     string
		email    string
		currency string
	}{
		{uuid.MustParse("6f1c2a5e-0b9d-4c61-9a58-2d3f8e7b1c11"), "Ada Obi", "ada@obi.example", "NGN"},
		{uuid.MustParse("6f1c2a5e-0b9d-4c61-9a58-2d3f8e7b1c12"), "Kwame Mensah", "kwame@mensah.example", "NGN"},
		{uuid.MustParse("6f1c2a5e-0b9d-4c61-9a58-2d3f8e7b1c13"), "Harbor Supplies Ltd", "ap@harbor.example", "USD"},
	}
)

type demoInvoice struct {
	number   string
	customer int
	dueIn    int
	items    []invoicing.ItemRequest
	send     bool
	payments []string
}

func main() {
	_ = godotenv.Load()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	svcs, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init services: %v", err)
	}
	defer svcs.Close()

	fmt.Println("→ Seeding business profile...")
	if err := seedBusiness(ctx, svcs.Pool); err != nil {
		log.Fatalf("seed business: %v", err)
	}
	fmt.Println("→ Seeding customers...")
	if err := seedCustomers(ctx, svcs.Pool); err != nil {
		log.Fatalf("seed customers: %v", err)
	}
	fmt.Println("→ Seeding invoices and payments...")
	if err := seedInvoices(ctx, svcs.Invoicing); err != nil {
		log.Fatalf("seed invoices: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedBusiness(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO business_profiles (id, name, email, base_currency, created_at, updated_at)
		VALUES ($1, $2, $3, 'NGN', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`,
		demoBusinessID, "Odyssey Studio", "billing@odyssey.example")
	return err
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range demoCustomers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_customers (id, business_id, name, email, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (id) DO NOTHING`, c.id, demoBusinessID, c.name, c.email, c.currency); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func seedInvoices(ctx context.Context, svc *invoicing.Service) error {
	invoices := []demoInvoice{
		{number: "INV-100001", customer: 0, dueIn: 14, send: true, payments: []string{"15000.00"},
			items: []invoicing.ItemRequest{item("Brand identity", "1", "15000.00")}},
		{number: "INV-100002", customer: 1, dueIn: -5, send: true,
			items: []invoicing.ItemRequest{item("Website maintenance", "2", "4500.00")}},
		{number: "INV-100003", customer: 1, dueIn: 30, send: true, payments: []string{"2000.00"},
			items: []invoicing.ItemRequest{item("Photography", "3", "2500.00"), item("Prints", "10", "150.00")}},
		{number: "INV-100004", customer: 2, dueIn: 21,
			items: []invoicing.ItemRequest{item("Consulting hours", "6", "85.00")}},
	}

	today := invoicing.DateOnly(time.Now())
	for _, d := range invoices {
		c := demoCustomers[d.customer]
		inv, err := svc.CreateInvoice(ctx, invoicing.CreateInvoiceRequest{
			BusinessID:    demoBusinessID,
			CustomerID:    c.id,
			InvoiceNumber: d.number,
			DueDate:       today.AddDate(0, 0, d.dueIn),
			Items:         d.items,
		})
		if errors.Is(err, invoicing.ErrDuplicateInvoiceNumber) {
			fmt.Printf("  %s exists, skipping\n", d.number)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", d.number, err)
		}
		if d.send {
			if _, err := svc.SendInvoice(ctx, inv.ID); err != nil {
				return fmt.Errorf("send %s: %w", d.number, err)
			}
		}
		for i, amount := range d.payments {
			_, _, err := svc.RecordPayment(ctx, invoicing.RecordPaymentInput{
				InvoiceID:      inv.ID,
				Amount:         money.MustParse(amount, inv.Currency),
				Method:         invoicing.MethodBankTransfer,
				IdempotencyKey: fmt.Sprintf("seed-%s-%d", d.number, i),
			})
			if err != nil {
				return fmt.Errorf("pay %s: %w", d.number, err)
			}
		}
		fmt.Printf("  %s %s for %s\n", d.number, inv.Amount.String(), c.name)
	}
	return nil
}

func item(description, quantity, unitPrice string) invoicing.ItemRequest {
	return invoicing.ItemRequest{
		Description: description,
		Quantity:    decimal.RequireFromString(quantity),
		UnitPrice:   decimal.RequireFromString(unitPrice),
	}
}
