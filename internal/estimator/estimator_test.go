package estimator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// completionServer returns an httptest server that answers every chat
// completion request with the given message content.
func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEstimateItemsCost(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantCost       int64
		wantConfidence float64
		wantBreakdown  int
	}{
		{
			name:           "normal estimate",
			content:        `{"estimatedItemsCost": 18, "confidence": 0.9, "breakdown": ["milk: 8 SAR", "bread: 10 SAR"]}`,
			wantCost:       18,
			wantConfidence: 0.9,
			wantBreakdown:  2,
		},
		{
			name:           "negative cost clamped to minimum",
			content:        `{"estimatedItemsCost": -100, "confidence": 0.9}`,
			wantCost:       MinItemsCost,
			wantConfidence: 0.9,
		},
		{
			name:           "fractional cost rounded",
			content:        `{"estimatedItemsCost": 17.6, "confidence": 0.9}`,
			wantCost:       18,
			wantConfidence: 0.9,
		},
		{
			name:           "confidence above one clamped",
			content:        `{"estimatedItemsCost": 30, "confidence": 1.5}`,
			wantCost:       30,
			wantConfidence: 1,
		},
		{
			name:           "confidence below zero clamped",
			content:        `{"estimatedItemsCost": 30, "confidence": -1}`,
			wantCost:       30,
			wantConfidence: 0,
		},
		{
			name:           "missing cost uses upstream default",
			content:        `{"confidence": 0.9}`,
			wantCost:       20,
			wantConfidence: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := completionServer(t, tt.content)
			defer server.Close()

			client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
			estimate := client.EstimateItemsCost(context.Background(), "1kg apples", "grocery", "")

			if estimate.Degraded {
				t.Error("expected a non-degraded estimate")
			}
			if estimate.EstimatedItemsCost != tt.wantCost {
				t.Errorf("cost = %d, want %d", estimate.EstimatedItemsCost, tt.wantCost)
			}
			if estimate.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", estimate.Confidence, tt.wantConfidence)
			}
			if len(estimate.Breakdown) != tt.wantBreakdown {
				t.Errorf("breakdown length = %d, want %d", len(estimate.Breakdown), tt.wantBreakdown)
			}
			if estimate.Breakdown == nil {
				t.Error("breakdown should default to an empty list, not nil")
			}
		})
	}
}

func TestEstimateItemsCostFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "unparseable content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]interface{}{
					"choices": []map[string]interface{}{
						{"message": map[string]string{"content": "not json at all"}},
					},
				}
				json.NewEncoder(w).Encode(resp)
			},
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
			estimate := client.EstimateItemsCost(context.Background(), "1kg apples", "grocery", "")

			if !estimate.Degraded {
				t.Error("expected a degraded estimate")
			}
			if estimate.EstimatedItemsCost != FallbackItemsCost {
				t.Errorf("cost = %d, want %d", estimate.EstimatedItemsCost, FallbackItemsCost)
			}
			if estimate.Confidence != 0.5 {
				t.Errorf("confidence = %v, want 0.5", estimate.Confidence)
			}
			if len(estimate.Breakdown) != 1 {
				t.Errorf("breakdown length = %d, want 1", len(estimate.Breakdown))
			}
		})
	}
}

func TestEstimateItemsCostUsesCustomCategory(t *testing.T) {
	var sawCustom atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			if m.Role == "user" && strings.Contains(m.Content, "pharmacy") {
				sawCustom.Store(true)
			}
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"estimatedItemsCost": 40, "confidence": 0.8}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
	client.EstimateItemsCost(context.Background(), "painkillers", "other", "pharmacy")

	if !sawCustom.Load() {
		t.Error("custom category should replace 'other' in the prompt")
	}
}

func TestEstimateDeliveryTime(t *testing.T) {
	server := completionServer(t, `{"estimatedTime": "20-30 دقيقة", "confidence": 0.85, "factors": ["قرب المتجر"]}`)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
	estimate := client.EstimateDeliveryTime(context.Background(), "Riyadh", "supermarket", "milk and bread")

	if estimate.Degraded {
		t.Error("expected a non-degraded estimate")
	}
	if estimate.EstimatedTime != "20-30 دقيقة" {
		t.Errorf("estimated time = %q", estimate.EstimatedTime)
	}
	if estimate.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", estimate.Confidence)
	}
	if len(estimate.Factors) != 1 {
		t.Errorf("factors length = %d, want 1", len(estimate.Factors))
	}
}

func TestEstimateDeliveryTimeDefaults(t *testing.T) {
	server := completionServer(t, `{}`)
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
	estimate := client.EstimateDeliveryTime(context.Background(), "Riyadh", "grocery", "eggs")

	if estimate.EstimatedTime != FallbackDeliveryTime {
		t.Errorf("estimated time = %q, want %q", estimate.EstimatedTime, FallbackDeliveryTime)
	}
	if estimate.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", estimate.Confidence)
	}
	if len(estimate.Factors) != 2 {
		t.Errorf("factors length = %d, want 2", len(estimate.Factors))
	}
	if estimate.Degraded {
		t.Error("upstream defaults are not a degraded result")
	}
}

func TestEstimateDeliveryTimeFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())
	estimate := client.EstimateDeliveryTime(context.Background(), "Riyadh", "grocery", "eggs")

	if !estimate.Degraded {
		t.Error("expected a degraded estimate")
	}
	if estimate.EstimatedTime != FallbackDeliveryTime {
		t.Errorf("estimated time = %q, want %q", estimate.EstimatedTime, FallbackDeliveryTime)
	}
	if estimate.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", estimate.Confidence)
	}
	if len(estimate.Factors) != 2 {
		t.Errorf("factors length = %d, want 2", len(estimate.Factors))
	}
}

func TestEstimatorBreakerSkipsUpstreamWhenOpen(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "gpt-4o", testLogger())

	// Trip the price breaker, then keep calling.
	for i := 0; i < 10; i++ {
		estimate := client.EstimateItemsCost(context.Background(), "1kg apples", "grocery", "")
		if !estimate.Degraded {
			t.Fatal("expected degraded estimates while upstream is failing")
		}
	}

	if got := requests.Load(); got != 5 {
		t.Errorf("upstream requests = %d, want 5 (breaker should absorb the rest)", got)
	}
}
