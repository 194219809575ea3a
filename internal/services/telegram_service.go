package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/daris/internal/models"
)

// TelegramService delivers admin-facing notifications through the Telegram
// bot API.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatPrice formats an amount with currency and thousand separators.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = ReferenceCurrency
	}
	str := amount.Truncate(0).String()

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 && digit != '-' {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String() + " " + currency
}

// NotifyPaymentSuccess announces a successfully reconciled payment.
func (s *TelegramService) NotifyPaymentSuccess(p *models.PaymentRecord) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range p.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			item.Title,
			item.Quantity,
			FormatPrice(item.UnitPrice, p.Currency),
			FormatPrice(item.LineTotal, p.Currency),
		))
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT RECEIVED</b>
<b>📋 Order:</b> %s
<b>💳 Gateway:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
━━━━━━━━━━━━━━━━━━`,
		p.MerchantOrderID,
		p.Gateway,
		p.CustomerName,
		p.CustomerPhone,
		itemsList.String(),
		FormatPrice(p.Amount, p.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyPayableCreated announces a new teacher payable.
func (s *TelegramService) NotifyPayableCreated(t *models.TeacherProfitTransaction) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>💰 TEACHER PAYABLE CREATED</b>
<b>👤 Teacher:</b> %s
<b>📚 Sale:</b> %s of %s
<b>📊 Share:</b> %s (%s)
<b>💵 Owed:</b> %s
━━━━━━━━━━━━━━━━━━`,
		t.TeacherID,
		t.RevenueType,
		FormatPrice(t.TotalAmount, t.Currency),
		t.ProfitPercentage.String(),
		t.PercentageSource,
		FormatPrice(t.ProfitAmount, t.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyCartReminder announces that an abandoned-cart reminder went out.
func (s *TelegramService) NotifyCartReminder(session models.CartSession) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>🛒 ABANDONED CART REMINDER</b>
<b>🆔 Session:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>💰 Cart value:</b> %s
━━━━━━━━━━━━━━━━━━`,
		session.ID,
		session.CustomerName,
		session.CustomerPhone,
		FormatPrice(session.Subtotal, session.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
