package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/circuitbreaker"
	"github.com/bidfit/backend/pkg/logger"
	"github.com/bidfit/backend/pkg/retry"
)

const (
	defaultPageSize = 100
	maxPages        = 50
)

// Client pulls opportunity records from an upstream feed API. The feed is
// paginated; one Fetch call walks pages until the API reports no more.
type Client struct {
	baseURL     string
	apiKey      string
	source      string
	pageSize    int
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type Config struct {
	BaseURL  string
	APIKey   string
	Source   string
	PageSize int
	Timeout  time.Duration
}

type wireRecord struct {
	ExternalID             string   `json:"external_id"`
	SolicitationNumber     string   `json:"solicitation_number"`
	Title                  string   `json:"title"`
	Organization           string   `json:"organization"`
	Description            string   `json:"description"`
	RequiredCapabilities   []string `json:"required_capabilities"`
	RequiredCertifications []string `json:"required_certifications"`
	Industries             []string `json:"industries"`
	Regions                []string `json:"regions"`
	RequiredExperience     int      `json:"required_experience"`
	ContractValue          float64  `json:"contract_value"`
	PostedDate             string   `json:"posted_date"`
	Deadline               string   `json:"deadline"`
	ContactEmail           string   `json:"contact_email"`
	SourceURL              string   `json:"source_url"`
	NAICSCode              string   `json:"naics_code"`
	HasEnhancedData        bool     `json:"has_enhanced_data"`
	HasParsedData          bool     `json:"has_parsed_data"`
	HasAnalysisData        bool     `json:"has_analysis_data"`
	DataQualityPct         float64  `json:"data_quality_pct"`
}

type feedPage struct {
	Records []wireRecord `json:"records"`
	HasMore bool         `json:"has_more"`
}

func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		source:   cfg.Source,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cb: circuitbreaker.NewCircuitBreaker("opportunity-feed", circuitbreaker.Config{
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}),
		retryConfig: retry.DefaultConfig(),
	}
}

func (c *Client) FetchOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	logger.Info("Fetching opportunity feed", zap.String("source", c.source))

	var all []models.Opportunity
	for page := 0; page < maxPages; page++ {
		result, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch feed page %d: %w", page, err)
		}

		for _, r := range result.Records {
			all = append(all, c.toOpportunity(r))
		}

		if !result.HasMore {
			break
		}
	}

	logger.Info("Opportunity feed fetched", zap.Int("records", len(all)))

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (*feedPage, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("page_size", fmt.Sprintf("%d", c.pageSize))
	reqURL := fmt.Sprintf("%s/opportunities?%s", c.baseURL, params.Encode())

	var result *feedPage
	err := c.cb.Execute(ctx, func() error {
		var err error
		result, err = retry.DoWithResult(ctx, c.retryConfig, func() (*feedPage, error) {
			return c.doRequest(ctx, reqURL)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string) (*feedPage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var pageResp feedPage
	if err := json.Unmarshal(body, &pageResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &pageResp, nil
}

func (c *Client) toOpportunity(r wireRecord) models.Opportunity {
	return models.Opportunity{
		ID:                     uuid.New().String(),
		Title:                  r.Title,
		Organization:           r.Organization,
		Description:            r.Description,
		Source:                 c.source,
		ExternalID:             r.ExternalID,
		SolicitationNumber:     r.SolicitationNumber,
		RequiredCapabilities:   r.RequiredCapabilities,
		RequiredCertifications: r.RequiredCertifications,
		Industries:             r.Industries,
		Regions:                r.Regions,
		RequiredExperience:     r.RequiredExperience,
		ContractValue:          r.ContractValue,
		PostedDate:             r.PostedDate,
		Deadline:               r.Deadline,
		ContactEmail:           r.ContactEmail,
		SourceURL:              r.SourceURL,
		NAICSCode:              r.NAICSCode,
		HasEnhancedData:        r.HasEnhancedData,
		HasParsedData:          r.HasParsedData,
		HasAnalysisData:        r.HasAnalysisData,
		DataQualityPct:         r.DataQualityPct,
	}
}
