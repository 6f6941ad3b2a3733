package config

import "stockbot/internal/model"

// defaultRetailers returns the built-in set of Australian retailers. The
// selector lists are ordered by priority; sites change markup often, so each
// field carries fallbacks rather than a single selector.
func defaultRetailers() []model.Retailer {
	return []model.Retailer{
		{
			Key:     "eb_games",
			Name:    "EB Games",
			BaseURL: "https://www.ebgames.com.au",
			SearchURLs: []string{
				"https://www.ebgames.com.au/search?q=pokemon+booster+box",
				"https://www.ebgames.com.au/search?q=one+piece+booster+box",
			},
			Enabled: true,
			Selectors: model.SelectorSet{
				Container: []string{"div.product-item", "li.product-tile"},
				Name:      []string{"h3.product-title", "a.product-name"},
				Price:     []string{"span.price", "div.product-price"},
				Stock:     []string{"div.stock-status", "span.availability"},
				Link:      []string{"a.product-link", "h3.product-title a"},
			},
		},
		{
			Key:     "jb_hifi",
			Name:    "JB Hi-Fi",
			BaseURL: "https://www.jbhifi.com.au",
			SearchURLs: []string{
				"https://www.jbhifi.com.au/search?page=1&query=pokemon%20booster%20box",
				"https://www.jbhifi.com.au/search?page=1&query=one%20piece%20booster%20box",
			},
			Enabled: true,
			Selectors: model.SelectorSet{
				Container: []string{"div.product-tile", "div[data-testid=product-card]"},
				Name:      []string{"h4.product-tile-title", "a.product-tile-link span"},
				Price:     []string{"span.price-value", "div.price"},
				Stock:     []string{"div.fulfilment-status", "span.stock-label"},
				Link:      []string{"a.product-tile-link", "a[href*='/products/']"},
			},
		},
		{
			Key:     "target",
			Name:    "Target Australia",
			BaseURL: "https://www.target.com.au",
			SearchURLs: []string{
				"https://www.target.com.au/search?text=pokemon+booster+box",
				"https://www.target.com.au/search?text=one+piece+booster+box",
			},
			Enabled: true,
			Selectors: model.SelectorSet{
				Container: []string{"div.product-grid-item", "article.product-card"},
				Name:      []string{"h3.product-name", "a.product-link span.name"},
				Price:     []string{"span.price", "div.price-current"},
				Stock:     []string{"div.availability", "span.fulfilment"},
				Link:      []string{"a.product-link", "a[href*='/p/']"},
			},
		},
		{
			Key:     "big_w",
			Name:    "Big W",
			BaseURL: "https://www.bigw.com.au",
			SearchURLs: []string{
				"https://www.bigw.com.au/search?q=pokemon+booster+box",
				"https://www.bigw.com.au/search?q=one+piece+booster+box",
			},
			Enabled: true,
			Selectors: model.SelectorSet{
				Container: []string{"div.product-item", "div[data-component=productTile]"},
				Name:      []string{"h3.product-name", "div.product-title a"},
				Price:     []string{"span.price", "div.product-price"},
				Stock:     []string{"span.availability", "div.stock-message"},
				Link:      []string{"a.product-link", "div.product-title a"},
			},
		},
		{
			Key:     "kmart",
			Name:    "Kmart Australia",
			BaseURL: "https://www.kmart.com.au",
			SearchURLs: []string{
				"https://www.kmart.com.au/search/?q=pokemon+booster+box",
				"https://www.kmart.com.au/search/?q=one+piece+booster+box",
			},
			Enabled: true,
			Selectors: model.SelectorSet{
				Container: []string{"div.product-card", "li.product-list-item"},
				Name:      []string{"div.product-title", "a.product-name"},
				Price:     []string{"span.price", "div.product-price"},
				Stock:     []string{"div.stock-status", "span.availability"},
				Link:      []string{"a.product-link", "a[href*='/product/']"},
			},
		},
	}
}
