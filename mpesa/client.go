package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	sandboxURL    = "https://sandbox.safaricom.co.ke"
	productionURL = "https://api.safaricom.co.ke"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"
)

// Daraja expects timestamps in Kenyan local time.
var nairobi = time.FixedZone("EAT", 3*60*60)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Environment    string
	// BaseURL overrides the environment URL.
	BaseURL string
	Timeout time.Duration
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == EnvProduction {
		return productionURL
	}
	return sandboxURL
}

type Client struct {
	cfg  Config
	http *resty.Client
	now  func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.baseURL()).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		now: time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken returns a cached client-credentials token, refreshing it a minute
// before it expires.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", fmt.Errorf("mpesa consumer credentials are not set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		Get("/oauth/v1/generate")
	if err != nil {
		return "", fmt.Errorf("mpesa token request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("mpesa token request failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token not found in response: %s", string(resp.Body()))
	}

	ttl, err := strconv.Atoi(body.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	c.token = body.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) Timestamp() string {
	return c.now().In(nairobi).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

type STKPushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	TransactionDesc  string
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Raw is the acknowledgement body exactly as received.
	Raw []byte `json:"-"`
}

type errorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// ProviderError is a request Daraja answered but did not accept.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mpesa rejected request (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// STKPush asks Daraja to prompt the payer's phone. A nil error means the push was
// accepted (ResponseCode "0") and CheckoutRequestID is set.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.Timestamp()
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.Password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return nil, fmt.Errorf("mpesa stk push: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		var apiErr errorResponse
		if jsonErr := json.Unmarshal(resp.Body(), &apiErr); jsonErr != nil || apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = string(resp.Body())
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Code: apiErr.ErrorCode, Message: apiErr.ErrorMessage}
	}

	var ack STKPushResponse
	if err := json.Unmarshal(resp.Body(), &ack); err != nil {
		return nil, fmt.Errorf("invalid response from mpesa: %w", err)
	}
	ack.Raw = resp.Body()

	if ack.ResponseCode != "0" {
		return nil, &ProviderError{StatusCode: resp.StatusCode(), Code: ack.ResponseCode, Message: ack.ResponseDescription}
	}
	if ack.CheckoutRequestID == "" {
		return nil, fmt.Errorf("incomplete response from mpesa: missing CheckoutRequestID")
	}
	return &ack, nil
}
