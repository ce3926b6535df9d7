package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"portfolio-watch/internal/portfolio"
)

// ErrInvalidPortfolio is matched by every ConfigError.
var ErrInvalidPortfolio = errors.New("invalid portfolio configuration")

// ConfigError reports an unreadable or structurally invalid portfolio file.
// Problems lists every violation found, not only the first one.
type ConfigError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "portfolio config %s", e.Path)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ": %d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidPortfolio, e.Err}
	}
	return []error{ErrInvalidPortfolio}
}

// Portfolio is the validated asset list and threshold band.
type Portfolio struct {
	Threshold portfolio.ThresholdBand
	Assets    []portfolio.Asset
}

// LoadPortfolio reads the portfolio file (JSON, or YAML by extension) and
// validates its shape. Any failure is a *ConfigError listing every problem.
func LoadPortfolio(path string) (*Portfolio, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	d := &shapeDecoder{}
	p := &Portfolio{}
	settings := foldKeys(v.AllSettings())

	if band, ok := d.threshold(settings); ok {
		p.Threshold = band
	}
	p.Assets = d.assets(settings)

	if len(d.problems) > 0 {
		return nil, &ConfigError{Path: path, Problems: d.problems}
	}
	return p, nil
}

// shapeDecoder decodes the portfolio one field at a time so a bad field
// never hides problems elsewhere in the file.
type shapeDecoder struct {
	problems []string
}

func (d *shapeDecoder) addf(format string, args ...any) {
	d.problems = append(d.problems, fmt.Sprintf(format, args...))
}

// field decodes m[key] into out with strict typing. Absent and null values
// report false without a problem; the caller decides whether that is fatal.
func (d *shapeDecoder) field(name string, m map[string]any, key string, out any) (present, ok bool) {
	raw, found := m[strings.ToLower(key)]
	if !found || raw == nil {
		return false, false
	}
	if err := decodeStrict(raw, out); err != nil {
		d.problems = append(d.problems, describeDecodeError(name, raw, err))
		return true, false
	}
	return true, true
}

func (d *shapeDecoder) required(name string, m map[string]any, key string, out any) bool {
	present, ok := d.field(name, m, key, out)
	if !present {
		d.addf("%s is required", name)
	}
	return ok
}

func (d *shapeDecoder) threshold(settings map[string]any) (portfolio.ThresholdBand, bool) {
	var section map[string]any
	if !d.required("threshold", settings, "threshold", &section) {
		return portfolio.ThresholdBand{}, false
	}
	section = foldKeys(section)

	var lower, upper float64
	minOK := d.required("threshold.min", section, "min", &lower)
	maxOK := d.required("threshold.max", section, "max", &upper)
	if !minOK || !maxOK {
		return portfolio.ThresholdBand{}, false
	}

	band := portfolio.ThresholdBand{Min: decimal.NewFromFloat(lower), Max: decimal.NewFromFloat(upper)}
	if band.Min.GreaterThan(band.Max) {
		d.addf("threshold.min (%s) must not exceed threshold.max (%s)", band.Min, band.Max)
		return portfolio.ThresholdBand{}, false
	}
	return band, true
}

func (d *shapeDecoder) assets(settings map[string]any) []portfolio.Asset {
	var elems []any
	if !d.required("assets", settings, "assets", &elems) {
		return nil
	}

	out := make([]portfolio.Asset, 0, len(elems))
	for i, elem := range elems {
		if asset, ok := d.asset(i, elem); ok {
			out = append(out, asset)
		}
	}
	return out
}

func (d *shapeDecoder) asset(i int, elem any) (portfolio.Asset, bool) {
	name := func(field string) string { return fmt.Sprintf("assets[%d].%s", i, field) }

	var m map[string]any
	if err := decodeStrict(elem, &m); err != nil || m == nil {
		d.addf("assets[%d] must be an object, got %T", i, elem)
		return portfolio.Asset{}, false
	}
	m = foldKeys(m)

	var asset portfolio.Asset
	ok := d.required(name("ticker"), m, "ticker", &asset.Ticker)
	if ok && strings.TrimSpace(asset.Ticker) == "" {
		d.addf("%s must not be empty", name("ticker"))
		ok = false
	}
	ok = d.required(name("type"), m, "type", &asset.Type) && ok
	ok = d.required(name("account"), m, "account", &asset.Account) && ok

	// qty, or its long form quantity
	var qty float64
	present, qtyOK := d.field(name("qty"), m, "qty", &qty)
	if !present {
		present, qtyOK = d.field(name("quantity"), m, "quantity", &qty)
	}
	if !present {
		d.addf("%s is required", name("qty"))
	}
	if qtyOK {
		asset.Quantity = decimal.NewFromFloat(qty)
	}
	ok = qtyOK && ok

	// msSymbol, or its long form alternateSymbol
	var alt string
	present, altOK := d.field(name("msSymbol"), m, "msSymbol", &alt)
	if !present {
		present, altOK = d.field(name("alternateSymbol"), m, "alternateSymbol", &alt)
	}
	if present && !altOK {
		ok = false
	}
	asset.AlternateSymbol = strings.TrimSpace(alt)

	return asset, ok
}

func decodeStrict(in, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

func describeDecodeError(name string, raw any, err error) string {
	var convErr *mapstructure.UnconvertibleTypeError
	if errors.As(err, &convErr) && convErr.Expected.IsValid() {
		return fmt.Sprintf("%s must be %s, got %T", name, kindName(convErr.Expected.Kind()), raw)
	}
	return fmt.Sprintf("%s has an invalid value of type %T", name, raw)
}

func kindName(k reflect.Kind) string {
	switch k {
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Map:
		return "an object"
	case reflect.Slice:
		return "a list"
	}
	return "a " + k.String()
}

// foldKeys lowercases map keys. Viper lowercases nested maps but not the
// objects inside lists.
func foldKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
