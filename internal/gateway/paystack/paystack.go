package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Orderion/Beme-Market/internal/config"
)

// 网关侧交易状态（原样透传，语义解释交给上层对账逻辑）
const (
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// EventChargeSuccess Webhook 中唯一需要处理的事件类型
const EventChargeSuccess = "charge.success"

var (
	// ErrUnavailable 传输层失败（网络不通、超时、响应不可解析）
	ErrUnavailable = errors.New("paystack: gateway unavailable")
	// ErrRejected 网关返回非成功信封（HTTP 非 2xx 或 status=false）
	ErrRejected = errors.New("paystack: gateway rejected")
)

// GatewayError 网关调用失败，保留原始响应体供落库诊断
type GatewayError struct {
	reason     error
	StatusCode int
	Raw        string
}

func (e *GatewayError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("%v: %s", e.reason, e.Raw)
	}
	return e.reason.Error()
}

func (e *GatewayError) Unwrap() error { return e.reason }

// Unavailable 包装传输层错误
func Unavailable(err error) error {
	return &GatewayError{reason: ErrUnavailable, Raw: err.Error()}
}

// Rejected 包装网关拒绝响应
func Rejected(statusCode int, raw string) error {
	return &GatewayError{reason: ErrRejected, StatusCode: statusCode, Raw: raw}
}

// InitializeRequest 初始化交易请求
// AmountMinor 为最小货币单位（GHS -> pesewas），由服务端定价得出，绝不信任客户端金额。
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResult 初始化交易结果
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult 查询交易结果，金额与状态原样透传
type VerifyResult struct {
	GatewayStatus   string
	AmountMinor     int64
	PaidAt          string
	Channel         string
	GatewayResponse string
	CustomerEmail   string
	Raw             json.RawMessage
}

// Gateway 支付网关接口，服务层依赖接口便于注入测试桩
type Gateway interface {
	Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// Client Paystack HTTP 客户端，适配层不做重试，重试策略由调用方决定
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 Paystack 客户端
func NewClient(cfg *config.PaystackConfig) *Client {
	return &Client{
		secretKey: cfg.SecretKey,
		baseURL:   cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// envelope Paystack 统一响应信封
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize 初始化交易，reference 由订单侧生成并在调用前已落库
func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResult, error) {
	payload := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
		"currency":  req.Currency,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	data, err := c.post(ctx, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var body struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, Unavailable(err)
	}

	result := &InitializeResult{
		AuthorizationURL: body.AuthorizationURL,
		AccessCode:       body.AccessCode,
		Reference:        body.Reference,
	}
	if result.Reference == "" {
		result.Reference = req.Reference
	}
	return result, nil
}

// Verify 查询交易，网关侧幂等，可重复调用
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, err
	}

	var body struct {
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		PaidAt          string `json:"paid_at"`
		Channel         string `json:"channel"`
		GatewayResponse string `json:"gateway_response"`
		Customer        struct {
			Email string `json:"email"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, Unavailable(err)
	}

	return &VerifyResult{
		GatewayStatus:   body.Status,
		AmountMinor:     body.Amount,
		PaidAt:          body.PaidAt,
		Channel:         body.Channel,
		GatewayResponse: body.GatewayResponse,
		CustomerEmail:   body.Customer.Email,
		Raw:             data,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, Unavailable(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, Unavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, Unavailable(err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Unavailable(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, Unavailable(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return nil, Rejected(resp.StatusCode, string(raw))
	}
	return env.Data, nil
}
