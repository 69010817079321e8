package config

// DefaultSources returns the OLX and Webmotors site tables. Selectors are
// ordered broad to narrow.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:       "olx",
			Label:      "OLX",
			ListingURL: "https://www.olx.com.br/autos-e-pecas/carros-vans-e-utilitarios",
			SearchURL:  "https://www.olx.com.br/brasil?q=",
			Selectors: []string{
				`[data-ds-component="DS-AdCard-Text"]`,
				`[class*="price"]`,
				`[class*="preco"]`,
				`[class*="Price"]`,
				`[class*="Preco"]`,
				`.olx-text`,
				`[data-testid*="price"]`,
				`[data-testid*="preco"]`,
			},
			LinkSelector: `a[href*="/autos-e-pecas/carros-vans-e-utilitarios"]`,
		},
		{
			Name:       "webmotors",
			Label:      "Webmotors",
			ListingURL: "https://www.webmotors.com.br/carros",
			YearParam:  "ano",
			SearchURL:  "https://www.webmotors.com.br/carros?oq=",
			Selectors: []string{
				`[class*="Price"]`,
				`[class*="price"]`,
				`[class*="Preco"]`,
				`[class*="preco"]`,
				`[data-testid*="price"]`,
				`[data-testid*="preco"]`,
				`.price`,
				`.preco`,
				`[itemprop="price"]`,
			},
			LinkSelector: `[class*="card"]`,
		},
	}
}
