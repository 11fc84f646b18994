package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// Receipt is a rendered PDF receipt.
type Receipt struct {
	Number   string
	Filename string
	PDF      []byte
}

func ReceiptNumber(p *models.Payment) string {
	return fmt.Sprintf("RCP/%s/%06d", p.CreatedAt.Format("20060102"), p.ID)
}

// Receipt renders the receipt of a Completed payment with the lines of every
// order it settled.
func (s *PaymentService) Receipt(ctx context.Context, id uint) (*Receipt, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentCompleted {
		return nil, utils.NewConflictError("receipt is only available for completed payments, this one is %s", payment.Status)
	}
	orders, err := s.orders.ListOrdersByReservation(ctx, payment.ReservationID)
	if err != nil {
		return nil, err
	}

	pdf, err := renderReceipt(payment, orders)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Number:   ReceiptNumber(payment),
		Filename: fmt.Sprintf("receipt-%s.pdf", payment.PaymentCode),
		PDF:      pdf,
	}, nil
}

func renderReceipt(p *models.Payment, orders []models.Order) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A5", "")
	doc.SetTitle("Receipt "+p.PaymentCode, false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 8, "Restaurant Receipt", "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 5, ReceiptNumber(p), "", 1, "C", false, 0, "")
	doc.CellFormat(0, 5, "Payment "+p.PaymentCode+"  "+p.CreatedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	doc.CellFormat(0, 5, fmt.Sprintf("Reservation #%d  %s", p.ReservationID, p.PaymentMethod), "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 9)
	doc.CellFormat(70, 6, "Item", "B", 0, "L", false, 0, "")
	doc.CellFormat(15, 6, "Qty", "B", 0, "R", false, 0, "")
	doc.CellFormat(43, 6, "Amount", "B", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 9)
	for _, order := range orders {
		for _, item := range order.OrderItems {
			if item.Status != models.ItemServed {
				continue
			}
			name := fmt.Sprintf("Food #%d", item.FoodID)
			if item.Food != nil {
				name = item.Food.Name
			}
			doc.CellFormat(70, 6, name, "", 0, "L", false, 0, "")
			doc.CellFormat(15, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
			doc.CellFormat(43, 6, utils.FormatCurrency(item.Price), "", 1, "R", false, 0, "")
		}
	}
	doc.Ln(2)

	line := func(label string, amount decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 9)
		doc.CellFormat(85, 6, label, "", 0, "R", false, 0, "")
		doc.CellFormat(43, 6, utils.FormatCurrency(amount), "", 1, "R", false, 0, "")
	}
	line("Subtotal", p.OriginalAmount, false)
	line("Tax ("+p.TaxPercentage.String()+"%)", p.TaxAmount, false)
	if p.DiscountAmount.IsPositive() {
		label := "Discount"
		if p.Discount != nil {
			label = fmt.Sprintf("Discount %s (%d%%)", p.Discount.DiscountCode, p.Discount.DiscountPercentage)
		}
		line(label, p.DiscountAmount.Neg(), false)
	}
	if p.DepositAmount.IsPositive() {
		line("Deposit", p.DepositAmount.Neg(), false)
	}
	line("Total", p.FinalAmount, true)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
