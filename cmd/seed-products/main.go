package main

import (
	"context"
	"fmt"
	stdlog "log"

	"github.com/shopspring/decimal"

	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/product"
	"github.com/Orderion/Beme-Market/internal/repository/mysql"
	"github.com/Orderion/Beme-Market/internal/service"
)

// 演示商品，分类与前端目录保持一致（men/women/kids/accessories）
var seedProducts = []struct {
	Name        string
	Description string
	Price       string
	Category    string
	Image       string
}{
	{"Classic Oxford Shirt", "Slim-fit cotton oxford shirt", "49.90", "men", "/img/products/oxford-shirt.jpg"},
	{"Denim Jacket", "Washed denim trucker jacket", "89.00", "men", "/img/products/denim-jacket.jpg"},
	{"Leather Chelsea Boots", "Hand-finished leather boots", "129.50", "men", "/img/products/chelsea-boots.jpg"},
	{"Wrap Midi Dress", "Floral print wrap dress", "75.00", "women", "/img/products/wrap-dress.jpg"},
	{"Tailored Blazer", "Single-breasted tailored blazer", "110.00", "women", "/img/products/blazer.jpg"},
	{"Silk Scarf", "Printed pure silk scarf", "32.00", "women", "/img/products/silk-scarf.jpg"},
	{"Graphic Hoodie", "Kids cotton hoodie", "38.50", "kids", "/img/products/kids-hoodie.jpg"},
	{"Canvas Sneakers", "Low-top canvas sneakers", "27.90", "kids", "/img/products/kids-sneakers.jpg"},
	{"Minimalist Watch", "Stainless steel quartz watch", "95.00", "accessories", "/img/products/watch.jpg"},
	{"Leather Belt", "Full-grain leather belt", "24.50", "accessories", "/img/products/belt.jpg"},
	{"Tote Bag", "Everyday canvas tote", "19.90", "accessories", "/img/products/tote.jpg"},
	{"Wireless Earbuds", "Bluetooth 5.3 earbuds", "59.00", "accessories", "/img/products/earbuds.jpg"},
}

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	productSvc := service.NewProductService(mysql.NewProductRepository(db))
	ctx := context.Background()

	existing, err := productSvc.ListAll(ctx)
	if err != nil {
		stdlog.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("商品表已有 %d 条记录，跳过播种（先手动清空再执行）\n", len(existing))
		return
	}

	for _, sp := range seedProducts {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			stdlog.Fatalf("bad seed price %q: %v", sp.Price, err)
		}
		p := &product.Product{
			Name:        sp.Name,
			Description: sp.Description,
			Price:       price,
			Image:       sp.Image,
			Category:    sp.Category,
			InStock:     true,
		}
		if err := productSvc.Create(ctx, p); err != nil {
			stdlog.Fatalf("create product %q: %v", sp.Name, err)
		}
		fmt.Printf("✅ %-24s %s %8s  (%s)\n", p.Name, "GHS", sp.Price, p.ID)
	}

	fmt.Printf("\n共写入 %d 个商品\n", len(seedProducts))
}
