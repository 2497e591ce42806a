package search

import (
	"strings"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	msgEmptyKeyword = "请输入搜索关键词"
	imageQueryLabel = "图片搜索"
	resultSales     = "已售 1000+件"
)

// Result is one rendered search hit.
type Result struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Price      string `json:"price"`
	Icon       string `json:"icon"`
	Background string `json:"background"`
}

// Results is a rendered result list together with the query that produced it.
type Results struct {
	Query string   `json:"query"`
	Items []Result `json:"items"`
}

// cannedResults is the fixed list every search renders, in this order.
var cannedResults = []Result{
	{Title: "时尚女装夏季新款", Price: "¥128", Icon: "fa-tshirt", Background: "#ffecd2, #fcb69f"},
	{Title: "新款智能手机", Price: "¥2999", Icon: "fa-mobile-alt", Background: "#a1c4fd, #c2e9fb"},
	{Title: "护肤套装补水保湿", Price: "¥89", Icon: "fa-pump-soap", Background: "#d299c2, #fef9d7"},
	{Title: "无线蓝牙耳机", Price: "¥199", Icon: "fa-headphones", Background: "#f5f7fa, #c3cfe2"},
}

// Service produces mock search results. The query never influences which
// results come back.
type Service struct{}

func New() *Service {
	return &Service{}
}

// ByKeyword rejects blank keywords; anything else yields the canned list.
func (s *Service) ByKeyword(text string) (Results, error) {
	keyword := strings.TrimSpace(text)
	if keyword == "" {
		return Results{}, domain.Validation(msgEmptyKeyword)
	}
	return Results{Query: keyword, Items: canned()}, nil
}

// ByImage ignores the image content and yields the canned list.
func (s *Service) ByImage(_ []byte) Results {
	return Results{Query: imageQueryLabel, Items: canned()}
}

// Select derives the detail record for a rendered hit. The original price is
// exactly double the mock price.
func (s *Service) Select(results Results, index int) (domain.ProductSummary, error) {
	if index < 0 || index >= len(results.Items) {
		return domain.ProductSummary{}, domain.ErrNotFound
	}
	r := results.Items[index]
	return domain.ProductSummary{
		Title:         r.Title,
		Price:         r.Price,
		OriginalPrice: "¥" + doubled(r.Price),
		Sales:         resultSales,
		Icon:          r.Icon,
		Background:    r.Background,
	}, nil
}

func canned() []Result {
	out := make([]Result, len(cannedResults))
	for i, r := range cannedResults {
		r.Index = i
		out[i] = r
	}
	return out
}

// doubled strips everything but digits and the decimal point from a price
// label and returns twice its value, 0 when nothing parses.
func doubled(label string) string {
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, label)
	v, err := decimal.NewFromString(digits)
	if err != nil {
		v = decimal.Zero
	}
	return v.Mul(decimal.NewFromInt(2)).String()
}
