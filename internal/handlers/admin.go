package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/daris/internal/middleware"
	"github.com/example/daris/internal/models"
	"github.com/example/daris/internal/services"
	"github.com/example/daris/internal/utils"
)

// AdminHandler manages the back-office payment surface.
type AdminHandler struct {
	db       *gorm.DB
	sm       *services.StateMachine
	revenue  *services.RevenueService
	currency *services.CurrencyService
	settings *services.SettingsService
	ledger   *services.LedgerService
	carts    *services.CartService
	storage  services.Storage
}

func NewAdminHandler(db *gorm.DB, sm *services.StateMachine, revenue *services.RevenueService,
	currency *services.CurrencyService, settings *services.SettingsService,
	ledger *services.LedgerService, carts *services.CartService, storage services.Storage) *AdminHandler {
	return &AdminHandler{
		db: db, sm: sm, revenue: revenue, currency: currency,
		settings: settings, ledger: ledger, carts: carts, storage: storage,
	}
}

// ListPayments returns payment records, optionally filtered.
func (h *AdminHandler) ListPayments(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.PaymentRecord{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if gateway := strings.TrimSpace(c.Query("gateway")); gateway != "" {
		query = query.Where("gateway = ?", gateway)
	}
	if email := strings.TrimSpace(c.Query("email")); email != "" {
		query = query.Where("customer_email = ?", email)
	}
	if from, ok := parseDate(c.Query("from")); ok {
		query = query.Where("created_at >= ?", from)
	}
	if to, ok := parseDate(c.Query("to")); ok {
		query = query.Where("created_at <= ?", to.Add(24*time.Hour))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	records := make([]models.PaymentRecord, 0)
	if err := query.
		Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&records).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetPayment returns one payment with its full status history.
func (h *AdminHandler) GetPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}

	var record models.PaymentRecord
	if err := h.db.Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&record, "id = ?", id).Error; err != nil {
		return services.WriteError(c, services.NewError(services.ErrNotFound, "payment "+id.String()))
	}

	return c.JSON(fiber.Map{"success": true, "data": record})
}

type transitionRequest struct {
	Observed string `json:"observed"`
	Target   string `json:"target"`
	Note     string `json:"note"`
}

// TransitionPayment applies an admin status change through the state
// machine. The client supplies the status it observed so a race with a
// webhook fails with StaleState instead of double-applying side effects.
func (h *AdminHandler) TransitionPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	admin, _ := middleware.GetCurrentAdmin(c)
	record, err := h.sm.Transition(c.Context(), id,
		models.PaymentStatus(req.Observed), models.PaymentStatus(req.Target),
		"admin:"+admin, req.Note)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": record})
}

type notesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// UpdateNotes edits the free-text admin notes. Notes are mutable and not
// part of the status history.
func (h *AdminHandler) UpdateNotes(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
	}

	var req notesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	res := h.db.Model(&models.PaymentRecord{}).
		Where("id = ?", id).
		Update("admin_notes", req.AdminNotes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.WriteError(c, services.NewError(services.ErrNotFound, "payment "+id.String()))
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListPayables returns teacher profit transactions, optionally filtered.
func (h *AdminHandler) ListPayables(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.TeacherProfitTransaction{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if teacherID := strings.TrimSpace(c.Query("teacher_id")); teacherID != "" {
		parsed, err := uuid.Parse(teacherID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid teacher_id")
		}
		query = query.Where("teacher_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	payables := make([]models.TeacherProfitTransaction, 0)
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&payables).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    payables,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// MarkPayablePaid settles a teacher payable, optionally storing an uploaded
// transfer proof.
func (h *AdminHandler) MarkPayablePaid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payable id")
	}

	notes := c.FormValue("notes")
	proofURL := ""

	if file, err := c.FormFile("proof"); err == nil && file != nil {
		src, err := file.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable proof file")
		}
		defer src.Close()

		proofURL, err = h.storage.Save(file.Filename, src)
		if err != nil {
			return err
		}
	}

	payable, err := h.revenue.MarkPaid(c.Context(), id, notes, proofURL)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": payable})
}

// CancelPayable voids a pending teacher payable.
func (h *AdminHandler) CancelPayable(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payable id")
	}

	var req notesRequest
	_ = c.BodyParser(&req)

	payable, err := h.revenue.Cancel(c.Context(), id, req.AdminNotes)
	if err != nil {
		return services.WriteError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "data": payable})
}

// GetRates returns the live exchange rate table.
func (h *AdminHandler) GetRates(c *fiber.Ctx) error {
	table, err := h.currency.Current(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": table})
}

type ratesRequest struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// UpdateRates replaces the exchange rate table. Already-settled payments
// keep reporting from their creation-time snapshot.
func (h *AdminHandler) UpdateRates(c *fiber.Ctx) error {
	var req ratesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	table, err := h.currency.UpdateRates(c.Context(), strings.ToUpper(req.Base), req.Rates)
	if err != nil {
		return services.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": table})
}

// GetMethods returns the manual payment method configuration.
func (h *AdminHandler) GetMethods(c *fiber.Ctx) error {
	methods, err := h.settings.PaymentMethods(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": methods})
}

// UpdateMethods replaces the manual payment method configuration.
func (h *AdminHandler) UpdateMethods(c *fiber.Ctx) error {
	var methods []services.PaymentMethodConfig
	if err := c.BodyParser(&methods); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.settings.SetPaymentMethods(c.Context(), methods); err != nil {
		return services.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": methods})
}

// GetPlatformPercent returns the platform default teacher share.
func (h *AdminHandler) GetPlatformPercent(c *fiber.Ctx) error {
	pct, err := h.settings.PlatformProfitPercent(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": pct})
}

type profitPercentRequest struct {
	Percent decimal.Decimal `json:"percent"`
}

// SetPlatformPercent updates the platform default teacher share. Frozen
// percentages on existing payables are unaffected.
func (h *AdminHandler) SetPlatformPercent(c *fiber.Ctx) error {
	var req profitPercentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.settings.SetPlatformProfitPercent(c.Context(), req.Percent); err != nil {
		return services.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": req.Percent})
}

// FinanceSummary totals the ledger over a date range in a display currency.
func (h *AdminHandler) FinanceSummary(c *fiber.Ctx) error {
	var fromPtr, toPtr *time.Time
	if from, ok := parseDate(c.Query("from")); ok {
		fromPtr = &from
	}
	if to, ok := parseDate(c.Query("to")); ok {
		end := to.Add(24 * time.Hour)
		toPtr = &end
	}

	summary, err := h.ledger.Summarize(c.Context(), fromPtr, toPtr, strings.ToUpper(c.Query("currency")))
	if err != nil {
		return services.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

// CreateManualEntry books an admin bookkeeping entry.
func (h *AdminHandler) CreateManualEntry(c *fiber.Ctx) error {
	var req services.ManualEntryInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.ledger.RecordManual(c.Context(), req)
	if err != nil {
		return services.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": entry})
}

// ExportTransactions streams the finance ledger as an xlsx workbook.
func (h *AdminHandler) ExportTransactions(c *fiber.Ctx) error {
	var fromPtr, toPtr *time.Time
	if from, ok := parseDate(c.Query("from")); ok {
		fromPtr = &from
	}
	if to, ok := parseDate(c.Query("to")); ok {
		end := to.Add(24 * time.Hour)
		toPtr = &end
	}

	workbook, err := h.ledger.Export(c.Context(), fromPtr, toPtr)
	if err != nil {
		return err
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return err
	}

	filename := "transactions-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

// ListCarts returns cart sessions, optionally filtered by status.
func (h *AdminHandler) ListCarts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.CartSession{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	sessions := make([]models.CartSession, 0)
	if err := query.
		Order("last_activity_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&sessions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sessions,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type scanRequest struct {
	ThresholdMinutes int `json:"threshold_minutes"`
}

// ScanAbandoned triggers the abandonment scan on demand.
func (h *AdminHandler) ScanAbandoned(c *fiber.Ctx) error {
	var req scanRequest
	_ = c.BodyParser(&req)
	if req.ThresholdMinutes <= 0 {
		req.ThresholdMinutes = 60
	}

	flipped, err := h.carts.CheckAbandonment(c.Context(), time.Duration(req.ThresholdMinutes)*time.Minute)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"abandoned": flipped}})
}

// SendCartReminder dispatches an abandoned-cart reminder.
func (h *AdminHandler) SendCartReminder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.carts.SendReminder(c.Context(), id)
	if err != nil {
		return services.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": session})
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
