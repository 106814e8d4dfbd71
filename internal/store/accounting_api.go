package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

// apiAccounting serves AccountingStore from the REST API of a primary instance. Requests are
// authenticated with a bearer token of an admin account.
type apiAccounting struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPIAccounting(baseURL, token string, httpClient *http.Client) AccountingStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &apiAccounting{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		token:      token,
		httpClient: httpClient,
	}
}

// UsageRequest is the body of the usage write endpoints.
type UsageRequest struct {
	Metric      Metric    `json:"metric" binding:"required"`
	PeriodStart time.Time `json:"period_start"`
	Limit       int       `json:"limit"`
}

// ConsumeResult answers a usage consume request.
type ConsumeResult struct {
	Consumed bool `json:"consumed"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (s *apiAccounting) ActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := s.doRequest(ctx, http.MethodGet, "/subscription/plans", nil, &plans); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *apiAccounting) PlanByID(ctx context.Context, id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := s.doRequest(ctx, http.MethodGet, fmt.Sprintf("/admin/plans/%d", id), nil, &plan); err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (s *apiAccounting) SubscriptionForUser(ctx context.Context, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	path := "/admin/users/" + url.PathEscape(userID) + "/subscription"
	if err := s.doRequest(ctx, http.MethodGet, path, nil, &sub); err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (s *apiAccounting) UsageForPeriod(ctx context.Context, userID string, periodStart time.Time) (*models.UserUsage, error) {
	start, _ := MonthPeriod(periodStart)
	q := url.Values{"period_start": {start.Format(time.RFC3339)}}
	path := "/admin/users/" + url.PathEscape(userID) + "/usage?" + q.Encode()

	var usage models.UserUsage
	if err := s.doRequest(ctx, http.MethodGet, path, nil, &usage); err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	return &usage, nil
}

func (s *apiAccounting) IncrementUsage(ctx context.Context, userID string, metric Metric, periodStart time.Time) error {
	start, _ := MonthPeriod(periodStart)
	path := "/admin/users/" + url.PathEscape(userID) + "/usage/increment"
	body := UsageRequest{Metric: metric, PeriodStart: start}
	if err := s.doRequest(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (s *apiAccounting) TryConsume(ctx context.Context, userID string, metric Metric, periodStart time.Time, limit int) (bool, error) {
	start, _ := MonthPeriod(periodStart)
	path := "/admin/users/" + url.PathEscape(userID) + "/usage/consume"
	body := UsageRequest{Metric: metric, PeriodStart: start, Limit: limit}

	var result ConsumeResult
	if err := s.doRequest(ctx, http.MethodPost, path, body, &result); err != nil {
		return false, fmt.Errorf("consume usage: %w", err)
	}
	return result.Consumed, nil
}

func (s *apiAccounting) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env apiEnvelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if env.Error != nil {
			msg = env.Error.Message
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return apperrors.NewNotFoundError(msg)
		case http.StatusUnauthorized:
			return apperrors.NewUnauthorizedError("accounting api rejected token")
		case http.StatusForbidden:
			return apperrors.NewForbiddenError(msg)
		}
		return fmt.Errorf("api error: status=%d message=%s", resp.StatusCode, msg)
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}
