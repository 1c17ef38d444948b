// Package estimator asks an external language model for order price and
// delivery time estimates. Both operations are total: any transport, API or
// parse failure is absorbed into a fixed fallback estimate, never an error.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MinItemsCost is the floor applied to any upstream cost estimate, in SAR.
	MinItemsCost = 5

	// FallbackItemsCost is returned when the price call fails entirely.
	FallbackItemsCost = 25

	// FallbackDeliveryTime is the fixed time range used when the upstream
	// call fails or the stored order is missing its estimate.
	FallbackDeliveryTime = "30-45 دقيقة"
)

// PriceEstimate is the items-cost estimate for an order. Degraded marks a
// fallback produced because the upstream call failed.
type PriceEstimate struct {
	EstimatedItemsCost int64    `json:"estimatedItemsCost"`
	Confidence         float64  `json:"confidence"`
	Breakdown          []string `json:"breakdown"`
	Degraded           bool     `json:"degraded"`
}

// TimeEstimate is the human-readable delivery time estimate for an order.
type TimeEstimate struct {
	EstimatedTime string   `json:"estimatedTime"`
	Confidence    float64  `json:"confidence"`
	Factors       []string `json:"factors"`
	Degraded      bool     `json:"degraded"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger

	priceBreaker *breaker
	timeBreaker  *breaker
}

func NewClient(baseURL, apiKey, model string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       logger,
		priceBreaker: newBreaker("price-estimate", 5, 30*time.Second, logger),
		timeBreaker:  newBreaker("time-estimate", 5, 30*time.Second, logger),
	}
}

const priceSystemPrompt = `You are an expert price estimator for Saudi Arabian retail markets. ` +
	`Analyze the order description and provide a realistic price estimate in Saudi Riyals (SAR). ` +
	`Consider current market prices in Saudi Arabia for the specified category. ` +
	`Respond with JSON in this format: { "estimatedItemsCost": number, "confidence": number, "breakdown": ["item1: X SAR", "item2: Y SAR"] }`

const timeSystemPrompt = `You are an expert delivery time estimator for Saudi Arabian cities. ` +
	`Consider traffic patterns, store availability, and order complexity. ` +
	`Respond with JSON in this format: { "estimatedTime": "30-45 دقيقة", "confidence": number, "factors": ["factor1", "factor2"] }`

// EstimateItemsCost estimates the total cost of the described items in SAR.
// When category is "other", customCategory is used as the effective label.
func (c *Client) EstimateItemsCost(ctx context.Context, description, category, customCategory string) PriceEstimate {
	categoryText := category
	if category == "other" && customCategory != "" {
		categoryText = customCategory
	}

	userPrompt := fmt.Sprintf("Category: %s\nOrder: %s\n\nEstimate the total cost of these items in Saudi Riyals (SAR).",
		categoryText, description)

	if !c.priceBreaker.Allow() {
		c.logger.WithField("category", categoryText).Warn("Price estimator circuit open, using fallback")
		return fallbackPriceEstimate()
	}

	content, err := c.complete(ctx, priceSystemPrompt, userPrompt)
	c.priceBreaker.Record(err == nil)
	if err != nil {
		c.logger.WithError(err).Error("Price estimation failed, using fallback")
		return fallbackPriceEstimate()
	}

	var raw struct {
		EstimatedItemsCost float64  `json:"estimatedItemsCost"`
		Confidence         float64  `json:"confidence"`
		Breakdown          []string `json:"breakdown"`
	}
	if err := json.Unmarshal(content, &raw); err != nil {
		c.logger.WithError(err).Error("Price estimation returned unparseable JSON, using fallback")
		return fallbackPriceEstimate()
	}

	cost := raw.EstimatedItemsCost
	if cost == 0 {
		cost = 20
	}
	confidence := raw.Confidence
	if confidence == 0 {
		confidence = 0.7
	}
	breakdown := raw.Breakdown
	if breakdown == nil {
		breakdown = []string{}
	}

	estimate := PriceEstimate{
		EstimatedItemsCost: clampCost(cost),
		Confidence:         clampConfidence(confidence),
		Breakdown:          breakdown,
	}

	c.logger.WithFields(logrus.Fields{
		"estimated_items_cost": estimate.EstimatedItemsCost,
		"confidence":           estimate.Confidence,
	}).Info("Price estimate produced")

	return estimate
}

// EstimateDeliveryTime estimates a human-readable delivery time range.
func (c *Client) EstimateDeliveryTime(ctx context.Context, location, category, description string) TimeEstimate {
	userPrompt := fmt.Sprintf("Location: %s\nCategory: %s\nOrder: %s\n\nEstimate delivery time in Arabic.",
		location, category, description)

	if !c.timeBreaker.Allow() {
		c.logger.WithField("location", location).Warn("Time estimator circuit open, using fallback")
		return fallbackTimeEstimate()
	}

	content, err := c.complete(ctx, timeSystemPrompt, userPrompt)
	c.timeBreaker.Record(err == nil)
	if err != nil {
		c.logger.WithError(err).Error("Delivery time estimation failed, using fallback")
		return fallbackTimeEstimate()
	}

	var raw struct {
		EstimatedTime string   `json:"estimatedTime"`
		Confidence    float64  `json:"confidence"`
		Factors       []string `json:"factors"`
	}
	if err := json.Unmarshal(content, &raw); err != nil {
		c.logger.WithError(err).Error("Delivery time estimation returned unparseable JSON, using fallback")
		return fallbackTimeEstimate()
	}

	estimatedTime := raw.EstimatedTime
	if estimatedTime == "" {
		estimatedTime = FallbackDeliveryTime
	}
	confidence := raw.Confidence
	if confidence == 0 {
		confidence = 0.8
	}
	factors := raw.Factors
	if len(factors) == 0 {
		factors = []string{"حركة المرور", "توفر المنتجات"}
	}

	estimate := TimeEstimate{
		EstimatedTime: estimatedTime,
		Confidence:    clampConfidence(confidence),
		Factors:       factors,
	}

	c.logger.WithFields(logrus.Fields{
		"estimated_time": estimate.EstimatedTime,
		"confidence":     estimate.Confidence,
	}).Info("Delivery time estimate produced")

	return estimate
}

func fallbackPriceEstimate() PriceEstimate {
	return PriceEstimate{
		EstimatedItemsCost: FallbackItemsCost,
		Confidence:         0.5,
		Breakdown:          []string{"تقدير تقريبي للطلب"},
		Degraded:           true,
	}
}

func fallbackTimeEstimate() TimeEstimate {
	return TimeEstimate{
		EstimatedTime: FallbackDeliveryTime,
		Confidence:    0.7,
		Factors:       []string{"تقدير معياري", "حركة المرور"},
		Degraded:      true,
	}
}

func clampCost(cost float64) int64 {
	rounded := int64(math.Round(cost))
	if rounded < MinItemsCost {
		return MinItemsCost
	}
	return rounded
}

func clampConfidence(confidence float64) float64 {
	return math.Max(0, math.Min(1, confidence))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete issues a single chat completion request and returns the raw JSON
// content of the first choice.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	return []byte(chatResp.Choices[0].Message.Content), nil
}
