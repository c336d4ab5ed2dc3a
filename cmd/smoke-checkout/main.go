package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Orderion/Beme-Market/internal/gateway/paystack"
)

// 本地冒烟脚本：起好 web 服务后跑一遍 下单 -> 伪造 Webhook -> verify。
// 用法: smoke-checkout <paystack-secret> [base-url]
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: smoke-checkout <paystack-secret> [base-url]")
		os.Exit(1)
	}
	secret := os.Args[1]
	baseURL := "http://localhost:8080"
	if len(os.Args) > 2 {
		baseURL = os.Args[2]
	}

	client := &http.Client{Timeout: 10 * time.Second}

	// 1. 健康检查
	fmt.Println("[1/4] health check...")
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		fmt.Printf("❌ health: %v\n", err)
		return
	}
	resp.Body.Close()
	fmt.Printf("✅ health: %d\n", resp.StatusCode)

	// 2. 取一个在售商品
	fmt.Println("[2/4] list products...")
	resp, err = client.Get(baseURL + "/api/products")
	if err != nil {
		fmt.Printf("❌ products: %v\n", err)
		return
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var productsResp struct {
		Code int `json:"code"`
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &productsResp); err != nil || len(productsResp.Data) == 0 {
		fmt.Println("❌ no products, run seed-products first")
		return
	}
	pid := productsResp.Data[0].ID
	fmt.Printf("✅ using product %s (%s)\n", productsResp.Data[0].Name, pid)

	// 3. 下单
	fmt.Println("[3/4] checkout init...")
	initBody, _ := json.Marshal(map[string]interface{}{
		"email": "smoke@example.com",
		"items": []map[string]interface{}{{"id": pid, "qty": 2}},
	})
	resp, err = client.Post(baseURL+"/api/paystack/checkout/init", "application/json", bytes.NewReader(initBody))
	if err != nil {
		fmt.Printf("❌ init: %v\n", err)
		return
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("   init -> %d %s\n", resp.StatusCode, body)

	var initResp struct {
		Reference string `json:"reference"`
	}
	_ = json.Unmarshal(body, &initResp)
	if initResp.Reference == "" {
		fmt.Println("❌ no reference (gateway init failed?)")
		return
	}

	// 4. 伪造一个签名正确的 charge.success 回调再 verify
	// 金额填 0 以便观察 amount_mismatch 防护是否生效。
	fmt.Println("[4/4] forged webhook + verify...")
	event, _ := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data": map[string]interface{}{
			"reference": initResp.Reference,
			"amount":    0,
			"status":    "success",
		},
	})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/paystack/webhook", bytes.NewReader(event))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(paystack.SignatureHeader, paystack.Signature(secret, event))
	resp, err = client.Do(req)
	if err != nil {
		fmt.Printf("❌ webhook: %v\n", err)
		return
	}
	resp.Body.Close()
	fmt.Printf("   webhook -> %d (expect 200, order should be amount_mismatch)\n", resp.StatusCode)

	resp, err = client.Get(baseURL + "/api/paystack/checkout/verify/" + initResp.Reference)
	if err != nil {
		fmt.Printf("❌ verify: %v\n", err)
		return
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("   verify -> %d %s\n", resp.StatusCode, body)
}
