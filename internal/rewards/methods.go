package rewards

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Method is one row of the reward method table. Methods differ only in data.
type Method struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MinAmount   decimal.Decimal `json:"minAmount"`
	MaxAmount   decimal.Decimal `json:"maxAmount"`
	Cooldown    time.Duration   `json:"-"`
}

// CooldownSeconds is the cooldown expressed the way clients display it.
func (m Method) CooldownSeconds() int64 { return int64(m.Cooldown / time.Second) }

// Catalog is an ordered, keyed set of methods.
type Catalog struct {
	order   []string
	methods map[string]Method
}

// NewCatalog validates methods and builds a catalog preserving their order.
func NewCatalog(methods []Method) (*Catalog, error) {
	c := &Catalog{methods: make(map[string]Method, len(methods))}
	for _, m := range methods {
		if m.ID == "" {
			return nil, fmt.Errorf("method id is required")
		}
		if _, dup := c.methods[m.ID]; dup {
			return nil, fmt.Errorf("duplicate method %q", m.ID)
		}
		if !m.MinAmount.IsPositive() || m.MaxAmount.LessThan(m.MinAmount) {
			return nil, fmt.Errorf("method %q: invalid amount range [%s, %s]", m.ID, m.MinAmount, m.MaxAmount)
		}
		if m.Cooldown < 0 {
			return nil, fmt.Errorf("method %q: negative cooldown", m.ID)
		}
		c.order = append(c.order, m.ID)
		c.methods[m.ID] = m
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("at least one method is required")
	}
	return c, nil
}

// DefaultCatalog returns the built-in methods: mining, staking, trading and referral.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Method{
		{ID: "mining", Name: "Crypto Mining", Description: "Mine cryptocurrencies and earn rewards",
			MinAmount: decimal.NewFromInt(5), MaxAmount: decimal.NewFromInt(25), Cooldown: 5 * time.Minute},
		{ID: "staking", Name: "Staking Rewards", Description: "Stake your tokens and earn passive income",
			MinAmount: decimal.NewFromInt(10), MaxAmount: decimal.NewFromInt(50), Cooldown: 10 * time.Minute},
		{ID: "trading", Name: "Trading Profits", Description: "Execute profitable trades and earn commissions",
			MinAmount: decimal.NewFromInt(15), MaxAmount: decimal.NewFromInt(75), Cooldown: 15 * time.Minute},
		{ID: "referral", Name: "Referral Bonus", Description: "Earn from your referral network",
			MinAmount: decimal.NewFromInt(8), MaxAmount: decimal.NewFromInt(40), Cooldown: 30 * time.Minute},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the method with the given id.
func (c *Catalog) Lookup(id string) (Method, bool) {
	m, ok := c.methods[id]
	return m, ok
}

// Methods returns the methods in table order.
func (c *Catalog) Methods() []Method {
	out := make([]Method, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.methods[id])
	}
	return out
}

type methodFile struct {
	Methods []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		MinAmount   string `yaml:"min_amount"`
		MaxAmount   string `yaml:"max_amount"`
		Cooldown    string `yaml:"cooldown"`
	} `yaml:"methods"`
}

// ParseCatalog decodes a YAML method table.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file methodFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode methods: %w", err)
	}
	methods := make([]Method, 0, len(file.Methods))
	for _, raw := range file.Methods {
		minAmount, err := decimal.NewFromString(raw.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("method %q: min_amount: %w", raw.ID, err)
		}
		maxAmount, err := decimal.NewFromString(raw.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("method %q: max_amount: %w", raw.ID, err)
		}
		cooldown, err := time.ParseDuration(raw.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("method %q: cooldown: %w", raw.ID, err)
		}
		methods = append(methods, Method{
			ID:          raw.ID,
			Name:        raw.Name,
			Description: raw.Description,
			MinAmount:   minAmount,
			MaxAmount:   maxAmount,
			Cooldown:    cooldown,
		})
	}
	return NewCatalog(methods)
}

// LoadCatalog reads a YAML method table from path, or returns the default
// catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read methods file: %w", err)
	}
	return ParseCatalog(data)
}
