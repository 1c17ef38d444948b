package notification

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func sampleMessage() Message {
	return Message{
		CustomerName:     "أحمد السالم",
		CustomerLocation: "الرياض، حي النخيل",
		CustomerWhatsApp: "0501234567",
		OrderDescription: "حليب وخبز",
		EstimatedCost:    18,
		DeliveryFee:      10,
		TotalCost:        28,
		EstimatedTime:    "30-45 دقيقة",
	}
}

func TestFormatInterpolatesAllFields(t *testing.T) {
	m := sampleMessage()
	got := Format(m)

	for _, want := range []string{
		m.CustomerName,
		m.CustomerLocation,
		m.CustomerWhatsApp,
		m.OrderDescription,
		"18 ريال",
		"10 ريال",
		"المجموع: 28 ريال",
		m.EstimatedTime,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted message missing %q", want)
		}
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	m := sampleMessage()
	if Format(m) != Format(m) {
		t.Error("formatting the same message twice should be identical")
	}
}

func TestSendReportsSuccess(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	sender := NewWhatsAppSender("0557808626", logger)
	if !sender.Send(sampleMessage()) {
		t.Error("stubbed sender should report success")
	}
}
