// Package notification formats and delivers WhatsApp order notifications.
// Delivery is stubbed: the formatted message is logged and reported as sent.
// A real integration would call the WhatsApp Business API here and report
// transport failure as false, never as an error.
package notification

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Message carries everything the notification template interpolates.
type Message struct {
	CustomerName     string
	CustomerLocation string
	CustomerWhatsApp string
	OrderDescription string
	EstimatedCost    int64
	DeliveryFee      int64
	TotalCost        int64
	EstimatedTime    string
}

// Format renders the order notification. Pure and deterministic; values are
// interpolated as-is.
func Format(m Message) string {
	return fmt.Sprintf(`🚚 *HassanDelivery - طلب جديد*

📋 *تفاصيل الطلب:*
👤 اسم الطالب: %s
📍 موقع الطالب: %s
📱 رقم واتساب الطالب: %s
🛒 الطلب المطلوب: %s

💰 *التكلفة المحسوبة:*
• تكلفة المشتريات: %d ريال
• رسوم التوصيل: %d ريال
• *المجموع: %d ريال*

⏰ *الوقت المتوقع:* %s

تم الحساب بالذكاء الاصطناعي 🤖`,
		m.CustomerName, m.CustomerLocation, m.CustomerWhatsApp, m.OrderDescription,
		m.EstimatedCost, m.DeliveryFee, m.TotalCost, m.EstimatedTime)
}

// WhatsAppSender logs formatted messages instead of calling a provider.
type WhatsAppSender struct {
	recipient string
	logger    *logrus.Logger
}

func NewWhatsAppSender(recipient string, logger *logrus.Logger) *WhatsAppSender {
	return &WhatsAppSender{recipient: recipient, logger: logger}
}

// Send reports whether the message was accepted for delivery. It never
// returns an error; the stubbed channel always accepts.
func (s *WhatsAppSender) Send(m Message) bool {
	formatted := Format(m)

	s.logger.WithFields(logrus.Fields{
		"recipient":      s.recipient,
		"customer":       m.CustomerName,
		"total_cost":     m.TotalCost,
		"estimated_time": m.EstimatedTime,
	}).Info("WhatsApp notification prepared")
	s.logger.Info(formatted)

	return true
}
