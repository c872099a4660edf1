package market

import "strings"

// Product 可交易品种。
type Product struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// DefaultProducts 默认品种表。
var DefaultProducts = []Product{
	{Code: "AKT", Name: "Anchor Cookware"},
	{Code: "SKB", Name: "Floating Bone Carving"},
	{Code: "WMD", Name: "Witchcraft Ore Drill"},
	{Code: "ANG", Name: "Angel Canned Food"},
	{Code: "HYR", Name: "Valley Hydroponic Meat"},
	{Code: "TUJ", Name: "Unity Oral Tonic"},
	{Code: "SEK", Name: "Sesque Card Stone"},
	{Code: "YSM", Name: "Originium Sapling"},
	{Code: "JJD", Name: "Sentinel Ore Ingot"},
	{Code: "XTK", Name: "Astral Crystal Block"},
	{Code: "JMB", Name: "Scrap Building Blocks"},
	{Code: "HNK", Name: "Hard Shell Helmet"},
}

// DefaultMonths 默认合约月份，第一个为主力月。
var DefaultMonths = []string{"2603", "2604", "2606"}

// Catalog 品种与合约月份。合约代码为 品种代码+月份。
type Catalog struct {
	Products []Product
	Months   []string
}

// DefaultCatalog 返回默认品种表的拷贝。
func DefaultCatalog() Catalog {
	return Catalog{
		Products: append([]Product(nil), DefaultProducts...),
		Months:   append([]string(nil), DefaultMonths...),
	}
}

// MainMonth 主力月份。
func (c Catalog) MainMonth() string {
	if len(c.Months) == 0 {
		return ""
	}
	return c.Months[0]
}

// MainContract 品种的主力合约代码。
func (c Catalog) MainContract(code string) string {
	return code + c.MainMonth()
}

// IsMain 是否主力合约。
func (c Catalog) IsMain(symbol string) bool {
	m := c.MainMonth()
	return m != "" && strings.HasSuffix(symbol, m)
}

// Symbols 按品种表、月份顺序列出全部合约。
func (c Catalog) Symbols() []string {
	out := make([]string, 0, len(c.Products)*len(c.Months))
	for _, p := range c.Products {
		for _, m := range c.Months {
			out = append(out, p.Code+m)
		}
	}
	return out
}

// Product 按代码查品种。
func (c Catalog) Product(code string) (Product, bool) {
	for _, p := range c.Products {
		if p.Code == code {
			return p, true
		}
	}
	return Product{}, false
}
