package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPortfolioValid(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{
		"threshold": {"min": 75000, "max": 150000},
		"assets": [
			{"ticker": "VTI", "type": "stock", "account": "brokerage", "qty": 12.5},
			{"ticker": "FXAIX", "type": "fund", "account": "401k", "qty": 40, "msSymbol": "a2zjrw"},
			{"ticker": "Cash", "type": "cash", "account": "bank", "qty": 5000, "msSymbol": null}
		]
	}`)

	p, err := LoadPortfolio(path)
	require.NoError(t, err)
	assert.True(t, p.Threshold.Min.Equal(decimal.NewFromInt(75000)))
	assert.True(t, p.Threshold.Max.Equal(decimal.NewFromInt(150000)))
	require.Len(t, p.Assets, 3)
	assert.Equal(t, "VTI", p.Assets[0].Ticker)
	assert.True(t, p.Assets[0].Quantity.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "a2zjrw", p.Assets[1].AlternateSymbol)
	assert.True(t, p.Assets[1].RoutesToSecondary())
	assert.False(t, p.Assets[2].RoutesToSecondary())
	assert.True(t, p.Assets[2].IsCash())
}

func TestLoadPortfolioYAMLAndAliasFieldNames(t *testing.T) {
	path := writeFile(t, "portfolio.yaml", `
threshold:
  min: 10
  max: 20
assets:
  - ticker: AAA
    type: stock
    account: main
    quantity: 3
    alternateSymbol: aaa-id
`)
	p, err := LoadPortfolio(path)
	require.NoError(t, err)
	require.Len(t, p.Assets, 1)
	assert.True(t, p.Assets[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "aaa-id", p.Assets[0].AlternateSymbol)
}

func TestLoadPortfolioMissingFile(t *testing.T) {
	_, err := LoadPortfolio(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPortfolio))
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoadPortfolioMalformedJSON(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{"threshold": {"min": 1,`)
	_, err := LoadPortfolio(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPortfolio))
}

func TestLoadPortfolioAggregatesEveryProblem(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{
		"threshold": {"min": 500},
		"assets": [
			{"ticker": "AAA", "type": "stock", "account": "a", "qty": "ten"},
			{"type": "stock", "account": "a", "qty": 1},
			{"ticker": "CCC", "type": "stock", "account": "a", "qty": 1, "msSymbol": 42}
		]
	}`)

	_, err := LoadPortfolio(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))

	joined := strings.ToLower(strings.Join(cfgErr.Problems, "\n"))
	assert.Contains(t, joined, "threshold.max is required")
	assert.Contains(t, joined, "assets[0].qty")
	assert.Contains(t, joined, "assets[1].ticker is required")
	assert.Contains(t, joined, "assets[2].mssymbol")
	assert.GreaterOrEqual(t, len(cfgErr.Problems), 4)
	assert.NotContains(t, joined, "assets[0].qty is required", "type errors are not repeated as missing")
}

func TestLoadPortfolioTypeErrorKeepsOtherProblems(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{
		"threshold": {"min": "x"},
		"assets": [
			{"ticker": "AAA", "type": "stock", "account": "a", "qty": "ten"},
			{"ticker": "BBB", "type": "stock", "qty": 2}
		]
	}`)

	_, err := LoadPortfolio(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))

	assert.Equal(t, []string{
		"threshold.min must be a number, got string",
		"threshold.max is required",
		"assets[0].qty must be a number, got string",
		"assets[1].account is required",
	}, cfgErr.Problems)
	for _, p := range cfgErr.Problems {
		assert.NotContains(t, p, "decoding failed")
	}
}

func TestLoadPortfolioWrongSectionTypes(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{"threshold": 5, "assets": [7, {"ticker": "", "type": "t", "account": "a", "qty": 1}]}`)

	_, err := LoadPortfolio(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Len(t, cfgErr.Problems, 3)
	assert.True(t, strings.HasPrefix(cfgErr.Problems[0], "threshold "))
	assert.Equal(t, "assets[0] must be an object, got float64", cfgErr.Problems[1])
	assert.Equal(t, "assets[1].ticker must not be empty", cfgErr.Problems[2])
}

func TestLoadPortfolioRejectsInvertedBand(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{"threshold": {"min": 10, "max": 5}, "assets": []}`)
	_, err := LoadPortfolio(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed")
}

func TestLoadPortfolioMissingSections(t *testing.T) {
	path := writeFile(t, "portfolio.json", `{}`)
	_, err := LoadPortfolio(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ElementsMatch(t, []string{"threshold is required", "assets is required"}, cfgErr.Problems)
}
