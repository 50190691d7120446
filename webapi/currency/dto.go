package currency

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
	"github.com/tidwall/gjson"
)

// RatesQuery is the query of GET and DELETE /api/fx/rates.
type RatesQuery struct {
	Base    string `query:"base" validate:"omitempty,len=3,alpha"`
	Targets string `query:"targets"`
}

// Parse returns the base and de-duplicated targets. An empty base is
// returned as "".
func (q *RatesQuery) Parse() (money.Code, []money.Code, error) {
	var base money.Code
	if q.Base != "" {
		b, err := money.ParseCode(q.Base)
		if err != nil {
			return "", nil, err
		}
		base = b
	}
	var targets []money.Code
	if q.Targets != "" {
		codes, err := money.ParseCodes(strings.Split(q.Targets, ","))
		if err != nil {
			return "", nil, err
		}
		targets = money.SortedUnique(codes)
	}
	return base, targets, nil
}

// ConvertQuery is the query of GET /api/fx/convert.
type ConvertQuery struct {
	Amount string `query:"amount" validate:"required,numeric"`
	From   string `query:"from" validate:"required,len=3,alpha"`
	To     string `query:"to" validate:"required,len=3,alpha"`
}

// Parse converts the query into typed values.
func (q *ConvertQuery) Parse() (float64, money.Code, money.Code, error) {
	amount, err := strconv.ParseFloat(q.Amount, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: %q", core.ErrInvalidAmount, q.Amount)
	}
	from, err := money.ParseCode(q.From)
	if err != nil {
		return 0, "", "", err
	}
	to, err := money.ParseCode(q.To)
	if err != nil {
		return 0, "", "", err
	}
	return amount, from, to, nil
}

// BulkRequest is the body of POST /api/fx/convert-bulk:
//
//	{"amounts_by_currency": {"USD": 100, "EUR": 50}, "to_currency": "USD"}
type BulkRequest struct {
	ToCurrency string `validate:"required,len=3,alpha"`
	Amounts    core.Amounts
}

// ParseBulkRequest reads body keeping the document order of
// amounts_by_currency. Repeated currencies are kept as separate entries.
func ParseBulkRequest(body []byte) (*BulkRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	req := &BulkRequest{ToCurrency: root.Get("to_currency").String()}

	amounts := root.Get("amounts_by_currency")
	if amounts.Exists() && !amounts.IsObject() {
		return nil, fmt.Errorf("amounts_by_currency must be an object")
	}
	var parseErr error
	amounts.ForEach(func(key, value gjson.Result) bool {
		code, err := money.ParseCode(key.String())
		if err != nil {
			parseErr = err
			return false
		}
		if value.Type != gjson.Number {
			parseErr = fmt.Errorf("%w: %s is not a number", core.ErrInvalidAmount, key.String())
			return false
		}
		req.Amounts = append(req.Amounts, core.Amount{Currency: code, Value: value.Float()})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return req, nil
}
