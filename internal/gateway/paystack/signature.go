package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
)

// SignatureHeader Paystack Webhook 签名头
const SignatureHeader = "x-paystack-signature"

// Signature 计算 Webhook 签名：HMAC-SHA512(secret, rawBody) 的十六进制编码
// 必须对原始请求体计算，JSON 解析后再序列化会破坏签名。
func Signature(secret string, rawBody []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 恒定时间比较签名，签名不符的请求不得触碰任何订单状态
func VerifySignature(secret string, rawBody []byte, header string) bool {
	expected := hmac.New(sha512.New, []byte(secret))
	expected.Write(rawBody)

	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	return hmac.Equal(expected.Sum(nil), got)
}

// WebhookEvent Webhook 事件信封
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData charge.success 事件携带的交易数据
type WebhookData struct {
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	Customer        struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// ParseWebhookEvent 解析已通过签名校验的事件体
func ParseWebhookEvent(rawBody []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
