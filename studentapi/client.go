package studentapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
)

// registryClient talks to the university student-registry REST API.
type registryClient struct {
	baseURL    string
	apiKey     string
	apiKeyHdr  string
	http       *http.Client
	maxRetries int
	cacheTTL   time.Duration
}

// NewClient builds the HTTP verifier from env:
// - STUDENT_API_BASE_URL (default https://registry.university.edu)
// - STUDENT_API_KEY (required)
// - STUDENT_API_KEY_HEADER (default X-API-Key)
// - VERIFY_TIMEOUT_SECONDS / VERIFY_MAX_RETRIES via config
// - VERIFY_CACHE_SECONDS (default 300; 0 disables the redis snapshot cache)
func NewClient() (Verifier, error) {
	baseURL := strings.TrimSpace(os.Getenv("STUDENT_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://registry.university.edu"
	}
	apiKey := strings.TrimSpace(os.Getenv("STUDENT_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("student api key is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("STUDENT_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	cacheSeconds := 300
	if v := strings.TrimSpace(os.Getenv("VERIFY_CACHE_SECONDS")); v != "" {
		if n, err := parseInt(v); err == nil && n >= 0 {
			cacheSeconds = n
		}
	}

	return &registryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiKeyHdr:  apiKeyHeader,
		http:       &http.Client{Timeout: time.Duration(config.VerifyTimeoutSeconds()) * time.Second},
		maxRetries: config.VerifyMaxRetries(),
		cacheTTL:   time.Duration(cacheSeconds) * time.Second,
	}, nil
}

// InvalidateCached drops the cached verification snapshot so the next Verify
// for this student hits the registry again.
func InvalidateCached(studentId string) {
	_ = config.RemoveRedisKey("verify:" + strings.TrimSpace(studentId))
}

type verifyResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Snapshot *StudentSnapshot `json:"snapshot"`
}

func (c *registryClient) Verify(ctx context.Context, studentId string) (VerificationResult, error) {
	studentId = strings.TrimSpace(studentId)
	if studentId == "" {
		return VerificationResult{}, errors.New("student id is empty")
	}

	cacheKey := "verify:" + studentId
	if c.cacheTTL > 0 {
		var cached VerificationResult
		if found, err := config.GetRedisObject(cacheKey, &cached); err == nil && found {
			return cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/v1/students/%s/status", c.baseURL, url.PathEscape(studentId))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return VerificationResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		result, retryable, err := c.doVerify(ctx, endpoint)
		if err == nil {
			if c.cacheTTL > 0 {
				_ = config.SetRedisObject(cacheKey, result, c.cacheTTL)
			}
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return VerificationResult{}, lastErr
}

func (c *registryClient) doVerify(ctx context.Context, endpoint string) (VerificationResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VerificationResult{}, false, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return VerificationResult{}, true, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return VerificationResult{
			Status:  models.VerificationStatusNotFound,
			Message: "student not found in registry",
		}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode >= 500
		return VerificationResult{}, retryable, fmt.Errorf("student api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return VerificationResult{}, false, err
	}

	return VerificationResult{
		Status:   mapStatus(parsed.Status),
		Message:  parsed.Message,
		Snapshot: parsed.Snapshot,
	}, false, nil
}

func mapStatus(s string) models.VerificationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enrolled", "verified", "active":
		return models.VerificationStatusVerified
	case "graduated":
		return models.VerificationStatusGraduated
	case "suspended":
		return models.VerificationStatusSuspended
	case "withdrawn", "dropped":
		return models.VerificationStatusWithdrawn
	case "not_found":
		return models.VerificationStatusNotFound
	default:
		return models.VerificationStatusApiError
	}
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
